package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := RegisterRequest{
		Username: "  alice  ",
		Password: "  pass1234  ",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "alice", req.Username)
	assert.Equal(t, "pass1234", req.Password)
}

func TestSanitizeStruct_EscapesHTML(t *testing.T) {
	req := RejectPayoutRequest{
		Reason: "flagged <script>alert('x')</script> by review",
	}
	SanitizeStruct(&req)

	assert.Contains(t, req.Reason, "&lt;script&gt;")
	assert.NotContains(t, req.Reason, "<script>")
}

func TestSanitizeStruct_CreatePayoutRequest(t *testing.T) {
	req := CreatePayoutRequest{
		UserID: "  b2c7f9ff-55ad-4a14-93f4-1f7b7ab5d001  ",
		Amount: 5000,
		Method: " paypal ",
		Notes:  "  monthly earnings <b>payout</b>  ",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "b2c7f9ff-55ad-4a14-93f4-1f7b7ab5d001", req.UserID)
	assert.Equal(t, "paypal", req.Method)
	assert.Equal(t, "monthly earnings &lt;b&gt;payout&lt;/b&gt;", req.Notes)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	s := "hello"
	SanitizeStruct(s) // should not panic
}

// --- Custom Validator tests ---

func TestSafeID_Valid(t *testing.T) {
	cases := []string{
		"ops-alice",
		"OPS_002",
		"a.b.c",
		"simple123",
		"ABC-def_GHI.123",
	}
	for _, tc := range cases {
		assert.True(t, safeStringRe.MatchString(tc), "expected valid: %s", tc)
	}
}

func TestSafeID_Invalid(t *testing.T) {
	cases := []string{
		"ops alice",   // space
		"ops<001>",    // angle brackets
		"ops;DROP",    // semicolon
		"",            // empty
		"hello world", // space
		"ops\n001",    // newline
	}
	for _, tc := range cases {
		assert.False(t, safeStringRe.MatchString(tc), "expected invalid: %s", tc)
	}
}
