package accounts

import (
	"strings"
	"unicode"
)

const minPasswordLength = 8

var commonPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "password123": {}, "12345678": {}, "123456789": {},
	"1234567890": {}, "qwerty123": {}, "qwertyuiop": {}, "iloveyou": {}, "sunshine": {},
	"princess": {}, "football": {}, "baseball": {}, "welcome1": {}, "letmein1": {},
	"abc12345": {}, "trustno1": {}, "superman": {}, "starwars": {}, "11111111": {},
	"00000000": {}, "passw0rd": {}, "admin123": {}, "changeme": {}, "computer": {},
}

// checkPassword returns a user-facing reason when password is too weak.
func checkPassword(password, username string) string {
	if len([]rune(password)) < minPasswordLength {
		return "This password is too short. It must contain at least 8 characters."
	}
	if isNumeric(password) {
		return "This password is entirely numeric."
	}
	if _, ok := commonPasswords[strings.ToLower(password)]; ok {
		return "This password is too common."
	}
	if tooSimilar(password, username) {
		return "The password is too similar to the username."
	}
	return ""
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

func tooSimilar(password, username string) bool {
	p := strings.ToLower(password)
	u := strings.ToLower(username)
	if len(u) < 3 {
		return false
	}
	return strings.Contains(p, u) || strings.Contains(u, p)
}
