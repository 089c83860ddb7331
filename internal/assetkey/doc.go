// Package assetkey defines the identifiers used to address cached assets.
//
// A Key pairs a 128-bit asset ID with an AssetType tag. Only the ID takes part
// in storage addressing: two keys with the same ID and different types name
// the same cache entry. The type tag exists for diagnostics.
package assetkey
