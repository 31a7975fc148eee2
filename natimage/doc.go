// Package natimage carries texture data between the three places it can
// live: serialized streams, decoded buffers, and platform rasters. An Image
// is bound to one registered codec at construction and uses it for every
// hop; a Raster is the reference-counted holder textures are pushed to and
// fetched from.
//
// # Ownership
//
// An Image either owns its buffers or borrows them. Decoding a stream or
// adopting a standard library image produces owned buffers. Fetching from a
// raster may instead hand the raster's buffers over directly, in which case
// the image records which buffers are borrowed and keeps a reference hold
// on the raster so the backing memory stays alive. Clearing the image, or
// populating it again, surrenders that hold.
//
// Borrowed pixel data is not the image's to give away: PutToRaster refuses
// with ErrDataBorrowed until the image is cleared or repopulated with owned
// data.
//
// # Populate Semantics
//
// Every populating operation clears the image first and leaves it empty when
// the operation fails, so an Image is always either empty or holding a
// complete texture. Queries and stream writes take a read lock; populating
// operations take the write lock.
package natimage
