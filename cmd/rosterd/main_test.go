package main

import (
	"bytes"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	for name, tc := range map[string]struct {
		args []string
		in   string
	}{
		"argument": {args: []string{"s3cret"}},
		"stdin":    {in: "s3cret\n"},
	} {
		t.Run(name, func(t *testing.T) {
			var out bytes.Buffer
			if err := hashPassword(tc.args, strings.NewReader(tc.in), &out); err != nil {
				t.Fatalf("hashPassword: %v", err)
			}
			hash := strings.TrimSpace(out.String())
			if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")); err != nil {
				t.Errorf("hash does not match password: %v", err)
			}
		})
	}
}

func TestHashPassword_Empty(t *testing.T) {
	var out bytes.Buffer
	if err := hashPassword(nil, strings.NewReader(""), &out); err == nil {
		t.Fatal("expected error for empty password")
	}
}
