package models

import "fmt"

var pitchClasses = [12]string{"C", "Db", "D", "Eb", "E", "F", "F#", "G", "Ab", "A", "Bb", "B"}

// KeyName returns the pitch class name, suffixed with "m" for minor keys.
// Undetectable or out of range keys return "?".
func KeyName(key, mode int) string {
	if key < 0 || key > 11 {
		return "?"
	}
	if mode == 0 {
		return pitchClasses[key] + "m"
	}
	return pitchClasses[key]
}

// Camelot returns the Camelot wheel position of a key, e.g. "8B" for C major and "8A" for A minor.
func Camelot(key, mode int) string {
	n := CamelotNumber(key, mode)
	if n == 0 {
		return "?"
	}
	if mode == 0 {
		return fmt.Sprintf("%dA", n)
	}
	return fmt.Sprintf("%dB", n)
}

// CamelotNumber returns the wheel number (1-12) of a key, or 0 when undetectable.
func CamelotNumber(key, mode int) int {
	if key < 0 || key > 11 {
		return 0
	}
	offset := 8
	if mode == 0 {
		offset = 5
	}
	n := (7*key + offset) % 12
	if n == 0 {
		n = 12
	}
	return n
}
