package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRegister(t *testing.T) {
	errs := ValidateRegister("alice@example.com", "alice_1", "Alice", "Secret123")
	assert.False(t, errs.HasErrors())

	errs = ValidateRegister("not-an-email", "a!", "", "short")
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "username")
	assert.Contains(t, errs, "display_name")
	assert.Equal(t, "Password must be at least 8 characters", errs["password"])

	errs = ValidateRegister("alice@example.com", "Assistant", "Alice", "Secret123")
	assert.Equal(t, "Username is reserved", errs["username"])

	errs = ValidateRegister("alice@example.com", "alice", "Alice", "alllowercase")
	assert.Equal(t, "Password must contain at least one uppercase letter, one number", errs["password"])
}

func TestValidateLogin(t *testing.T) {
	assert.False(t, ValidateLogin("bob@example.com", "x").HasErrors())

	errs := ValidateLogin("", "")
	assert.Equal(t, "Email is required", errs["email"])
	assert.Equal(t, "Password is required", errs["password"])
}

func TestValidateMessage(t *testing.T) {
	assert.False(t, ValidateMessage("hello").HasErrors())
	assert.False(t, ValidateMessage(strings.Repeat("é", MaxMessageLength)).HasErrors())

	assert.Equal(t, "Message content is required", ValidateMessage(" \n\t")["content"])
	assert.True(t, ValidateMessage(strings.Repeat("a", MaxMessageLength+1)).HasErrors())
}
