package installer

import (
	"encoding/hex"
	"strings"

	"github.com/zeebo/blake3"
)

// Terminator ends every fragment. The loader on the device splits on CR;
// LF was misread by it.
const Terminator = "\r"

// fragments is the bootstrap program, one line per entry, in load order.
// Later definitions use earlier ones, so the order must not change.
var fragments = []string{
	": max over over - 0< if swap drop -1 then if exit then swap drop ;",
	": min over over - 0< if drop exit then swap drop ;",
	": testcc -1 512 0 do 1 + dup , loop ;",
	": >prn 32 over over - 0< if 46 emit drop drop exit then drop 127 over over swap - 0< if 46 emit drop drop exit then drop emit ;",
	": delay drop 1234 0 do 1 drop loop ;",
	": ecol 58 emit ;",
	": hadr dup 1 + h. ecol space ;",

	": hlist hadr 16 + dup 16 - over over",
	"do 1 + over over swap - 1 - 0<",
	"if dup c@ dup 16 - 0< if 48 emit then h. 100 delay then loop",
	"drop ;",

	": alist space space 16 + dup 16 - over over",
	"do 1 + over over swap - 1 - 0<",
	"if dup c@ >prn 100 delay then loop",
	"drop ;",
	"do 1 + over over swap - 1 - 0<",

	": bottom 536870912 ;",
	": topbottom bottom 16384 + 1024 - 1024 + 16 - ;",

	": blist cr depth 1 - 0< if 0 then",
	"bottom 16384 + 1024 - 1024 + 16 - 512 + 32 + 16 - min bottom max 1 - 8 0 do",
	"dup hlist 16 - alist 32 emit 32 emit 32 emit cr swap drop loop 1 + cr ;",

	"wag wag 8 wiggle",

	": emits 0 do emit loop ;",
	// the loader crashes if stuffit comes after the next line
	": stuffit 69 68 67 66 65 5 ;",
	"69 68 67 66 65 5 emits cr",
}

// Fragments returns a copy of the program lines without terminators.
func Fragments() []string {
	out := make([]string, len(fragments))
	copy(out, fragments)
	return out
}

// Content returns the exact bytes written to the bootstrap file.
func Content() []byte {
	var b strings.Builder
	for _, f := range fragments {
		b.WriteString(f)
		b.WriteString(Terminator)
	}
	return []byte(b.String())
}

// Digest returns the hex BLAKE3-256 digest of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
