// Package localstore is the local project folder destination.
//
// A folder must be granted before anything is written. Granting creates the
// standard layout (user_generated/, director_assets/) and checks
// that the folder is readable and writable. Manifests are overwritten by
// project name; remaster batches land in timestamped folders under
// director_assets/. Writes take a cross-process file lock on the folder so
// two director processes never interleave.
package localstore
