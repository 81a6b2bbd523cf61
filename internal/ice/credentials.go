package ice

import (
	"github.com/pion/randutil"
)

// Credential lengths per RFC 8445 §15.4: ufrag is at least 24 bits of
// randomness (we use 8 chars from a 62-char alphabet), password at
// least 128 bits (24 chars).
const (
	ufragLength    = 8
	passwordLength = 24
)

var credGen = randutil.NewMathRandomGenerator()

// generateUfrag returns a fresh local ICE username fragment.
func generateUfrag() (string, error) {
	return randutil.GenerateCryptoRandomString(ufragLength, randutil.RunesAlpha+"0123456789")
}

// generatePassword returns a fresh local ICE password.
func generatePassword() (string, error) {
	return randutil.GenerateCryptoRandomString(passwordLength, randutil.RunesAlpha+"0123456789")
}

// generateTiebreaker returns a random 64-bit value used to resolve
// simultaneous controlling/controlled role conflicts per RFC 8445
// §6.1.1: the side with the larger tiebreaker ends up controlling.
func generateTiebreaker() uint64 {
	return uint64(credGen.Uint32())<<32 | uint64(credGen.Uint32())
}

// localUsername builds the USERNAME attribute value this agent sends
// on outbound checks: "remoteUfrag:localUfrag" (RFC 8445 §7.1.3).
func localUsername(remoteUfrag, localUfrag string) string {
	return remoteUfrag + ":" + localUfrag
}
