package std

import "crypto/rand"

// Random implements crypto.Random over crypto/rand, the cryptographic
// RNG abstraction required by spec §5 "Randomness".
type Random struct{}

func (Random) Fill(buf []byte) error {
	_, err := rand.Read(buf)
	return err
}
