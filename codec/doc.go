// Package codec defines the texture codec plumbing shared by every format:
// the codec registry, the canonical texture carrier, typed error kinds,
// per-call warning contexts, library logging, and transparent stream
// decompression.
//
// # Registry
//
// Codecs register themselves under a unique name with their file extensions
// and a capabilities descriptor. Detection probes registered codecs in
// registration order, resetting the stream between probes; the first codec
// whose Sniff accepts the stream wins. A package-level Default registry is
// populated by the format packages' init functions, so importing
// codec/tiff or codec/pvr is enough to make those formats detectable.
//
// # Textures
//
// Texture is the canonical carrier codecs decode into and encode from: a
// format descriptor, optional palette, and an ordered mipmap chain. Raw
// formats hold uncompressed texels; block-compressed formats hold opaque
// payloads tagged by the Compression field.
//
// # Errors and Warnings
//
// Failures are classified into five kinds: format mismatch, malformed
// structure, unsupported variant, rejected allocation, and underlying
// library failure. Recoverable oddities (truncated names, fallback decode
// paths) are reported as warnings on the per-call Context instead of
// failing the operation.
//
// # Logging
//
// The package logs through log/slog behind SetLogger. By default nothing is
// emitted; applications install their own logger to see Debug/Warn
// diagnostics from every codec.
package codec
