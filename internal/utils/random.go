package utils // package utils provides helper functions for hashing and random generation

import (
	"crypto/rand"   // secure random number generation
	"crypto/sha256" // SHA-256 hashing for refresh tokens
	"encoding/hex"  // hex encoding functions
	"math/big"      // big.Int for unbiased random indexing
)

// codeAlphabet holds the characters used for one-time reset codes: upper
// and lower case letters plus digits.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// nickAdjectives and nickAnimals feed RandomNickname.  The combination
// space is large enough that collisions are harmless; nicknames are not
// unique identifiers.
var nickAdjectives = []string{
	"Dazzling", "Warm", "Brilliant", "Secret", "Calm",
	"Sleepy", "Abundant", "Fantastic", "Serene", "Laidback",
	"Unique", "Great", "Subtle", "Delicate", "Cheerful",
	"Happy", "Solitary", "Mystic", "Radiant", "Quiet",
	"Shining", "Splendid", "Peaceful", "Graceful", "Fiery",
	"Cool", "Gentle", "Cute", "Lively", "Spirited",
}

var nickAnimals = []string{
	"Zebra", "Sheep", "Camel", "FennecFox", "Giraffe",
	"Elephant", "Hippo", "Koala", "Sloth", "Tiger",
	"Lion", "Owl", "Whale", "Shark", "Frog",
	"Guppy", "Cat", "Puppy", "Hamster", "Quokka",
	"Panda", "Turtle", "Rabbit", "Starfish", "Jellyfish",
	"Meerkat", "Lizard", "GuineaPig", "Deer", "Otter",
}

// RandomCode returns a random alphanumeric string of the given length,
// suitable for one-time password reset codes.
func RandomCode(length int) (string, error) {
	buf := make([]byte, length)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// RandomNickname returns a display name of the form AdjectiveAnimal, used
// when a signup does not supply a nickname.
func RandomNickname() string {
	a, err := rand.Int(rand.Reader, big.NewInt(int64(len(nickAdjectives))))
	if err != nil {
		return nickAdjectives[0] + nickAnimals[0]
	}
	b, err := rand.Int(rand.Reader, big.NewInt(int64(len(nickAnimals))))
	if err != nil {
		return nickAdjectives[0] + nickAnimals[0]
	}
	return nickAdjectives[a.Int64()] + nickAnimals[b.Int64()]
}

// HashToken returns the SHA-256 hash of a signed token as a hex string.
// Refresh tokens are stored hashed so that a leaked database dump cannot
// be replayed against the refresh endpoint.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
