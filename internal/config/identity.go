package config

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

const namePrefix = "berth"

// identityHash digests every field that affects the container. Strings are
// length-prefixed and lists count-prefixed so that adjacent fields cannot
// collide by shifting bytes between them.
func identityHash(e *Environment) uint64 {
	d := xxhash.New()
	writeString(d, e.OriginalName)
	writeString(d, e.Image)
	writeString(d, e.Dockerfile)
	writeString(d, e.BuildContext)
	writeString(d, e.EntryCmd)
	writeList(d, e.EntryOptions)
	writeList(d, e.ExecCmds)
	writeList(d, e.ExecOptions)
	writeList(d, e.CreateOptions)
	writeList(d, e.CpCmds)
	return d.Sum64()
}

func writeLength(d *xxhash.Digest, n int) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(n))
	_, _ = d.Write(buf[:])
}

func writeString(d *xxhash.Digest, s string) {
	writeLength(d, len(s))
	_, _ = d.WriteString(s)
}

func writeList(d *xxhash.Digest, values []string) {
	writeLength(d, len(values))
	for _, v := range values {
		writeString(d, v)
	}
}

func containerName(e *Environment) string {
	return fmt.Sprintf("%s-%s-%016x", namePrefix, e.OriginalName, identityHash(e))
}
