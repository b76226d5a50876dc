package fim

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/sentrylabs/fim/pkg/stream"
)

// hashChunkSize is the buffer size used when streaming file contents through
// the hasher fan-out. It is not part of the external contract.
const hashChunkSize = 2048

// disabledDigest is the placeholder rendered for a hash field that was not
// requested by the flags tag.
const disabledDigest = "xxx"

// directoryDigest is the placeholder rendered for both hash fields of a
// directory record, for which hashing does not apply.
const directoryDigest = "ddd"

// Fingerprint computes the canonical six-field fingerprint line for path
// under the given flags tag. If the target no longer exists, deleted is
// true and line/err are zero values — the caller must emit a deletion event
// and must not update the record's stored fingerprint. Any other failure
// (most commonly a hashing I/O failure) is reported through err, in which
// case the caller should skip this file for the current cycle without
// emitting an event. Hashing a regular file is preemptable: if ctx is
// cancelled mid-hash, Fingerprint returns promptly with ctx.Err() wrapped
// rather than finishing a potentially large read.
func Fingerprint(ctx context.Context, path string, tag FlagsTag, prefilterCmd string) (line string, deleted bool, err error) {
	info, statErr := os.Lstat(path)
	if statErr != nil {
		return "", true, nil
	}

	var size int64
	var mode uint32
	var uid, gid uint32
	if tag.WantSize() {
		size = info.Size()
	}
	if tag.WantPerm() {
		mode = uint32(info.Mode().Perm())
	}
	if tag.WantOwner() || tag.WantGroup() {
		u, g, ownerErr := fileOwnership(info)
		if ownerErr != nil {
			return "", false, errors.Wrap(ownerErr, "unable to determine ownership")
		}
		if tag.WantOwner() {
			uid = u
		}
		if tag.WantGroup() {
			gid = g
		}
	}

	md5Hex := disabledDigest
	sha1Hex := disabledDigest

	switch {
	case info.IsDir():
		md5Hex = directoryDigest
		sha1Hex = directoryDigest
	case info.Mode().IsRegular() && (tag.WantMD5() || tag.WantSHA1()):
		md5Hex, sha1Hex, err = hashFile(ctx, path, tag, prefilterCmd)
		if err != nil {
			return "", false, errors.Wrap(err, "unable to hash file")
		}
	}

	return formatFingerprint(size, mode, uid, gid, md5Hex, sha1Hex), false, nil
}

// formatFingerprint renders the six colon-separated fields of a fingerprint
// line. This string is the external wire contract and must remain
// byte-exact.
func formatFingerprint(size int64, mode, uid, gid uint32, md5Hex, sha1Hex string) string {
	return fmt.Sprintf("%d:%d:%d:%d:%s:%s", size, mode, uid, gid, md5Hex, sha1Hex)
}

// hashFile computes the requested digests for a regular file in a single
// pass, opening it through the prefilter pipeline.
func hashFile(ctx context.Context, path string, tag FlagsTag, prefilterCmd string) (md5Hex, sha1Hex string, err error) {
	source, closer, err := OpenForHash(path, prefilterCmd)
	if err != nil {
		return "", "", err
	}
	defer closer.Close()

	if !tag.WantMD5() && !tag.WantSHA1() {
		return disabledDigest, disabledDigest, nil
	}

	// Fan the stream out through both hashers in a single pass: each
	// NewHashedWriter layer attaches one digest to the write path, with the
	// innermost writer discarding the bytes once both hashers have seen
	// them. The outermost layer checks ctx before every write so hashing a
	// large file can be preempted promptly.
	var sink io.Writer = io.Discard
	md5Hasher := md5.New()
	sha1Hasher := sha1.New()
	if tag.WantSHA1() {
		sink = stream.NewHashedWriter(sink, sha1Hasher)
	}
	if tag.WantMD5() {
		sink = stream.NewHashedWriter(sink, md5Hasher)
	}
	sink = stream.NewPreemptableWriter(sink, ctx.Done(), 0)

	buffer := make([]byte, hashChunkSize)
	if _, copyErr := io.CopyBuffer(sink, source, buffer); copyErr != nil {
		if errors.Is(copyErr, stream.ErrWritePreempted) {
			return "", "", errors.Wrap(ctx.Err(), "hashing preempted")
		}
		return "", "", errors.Wrap(copyErr, "unable to read file contents")
	}

	if tag.WantMD5() {
		md5Hex = hex.EncodeToString(md5Hasher.Sum(nil))
	} else {
		md5Hex = disabledDigest
	}
	if tag.WantSHA1() {
		sha1Hex = hex.EncodeToString(sha1Hasher.Sum(nil))
	} else {
		sha1Hex = disabledDigest
	}
	return md5Hex, sha1Hex, nil
}
