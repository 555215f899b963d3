package databases

// BucketDoc exposes the $group output shape to the external tests
type BucketDoc = bucketDoc
