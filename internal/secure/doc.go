// Package secure keeps extracted secret values encrypted in memory.
//
// Values read from local source files live in memguard enclaves between
// extraction and publishing:
//
//   - Encrypted at rest in memory (XSalsa20Poly1305)
//   - Protected from swapping via mlock where the platform allows it
//   - Dropped as soon as the run has published them
//
// Usage:
//
//	buf := secure.NewSecureBuffer([]byte("my-secret"))
//	defer buf.Destroy()
//
//	value, err := buf.Reveal()
//	if err != nil {
//	    return err
//	}
//
// The AWS SDK takes secret values as Go strings, so Reveal necessarily copies
// the plaintext onto the regular heap for the duration of the API call.
package secure
