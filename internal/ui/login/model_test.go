package login

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateURL(t *testing.T) {
	assert.NoError(t, validateURL("https://meds.example.com"))
	assert.NoError(t, validateURL(" http://localhost:8080 "))
	assert.Error(t, validateURL("meds.example.com"))
	assert.Error(t, validateURL("ftp://meds.example.com"))
	assert.Error(t, validateURL(""))
}

func TestValidateRequired(t *testing.T) {
	v := validateRequired("Token")
	assert.EqualError(t, v("  "), "Token is required")
	assert.NoError(t, v("abc"))
}

func TestView_ShowsError(t *testing.T) {
	m := New("http://localhost:8080", 80, 24)
	m.Start("Session expired. Press 'L' to sign in again.")
	assert.Contains(t, m.View(), "Session expired")

	m.SetBusy(true)
	assert.Contains(t, m.View(), "Checking session")
}
