// Package gcstransport implements a resumable streaming uploader and a
// single-shot reader for Google Cloud Storage objects, against the raw
// JSON/XML HTTP API rather than the cloud.google.com/go/storage client.
package gcstransport

import "strings"

// ObjectPath binds a bucket to a key prefix shared by every object this
// transport reads or writes.
type ObjectPath struct {
	Bucket    string
	KeyPrefix string
}

// NewObjectPath normalizes prefix to end with "/" unless it is empty.
func NewObjectPath(bucket, prefix string) ObjectPath {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return ObjectPath{Bucket: bucket, KeyPrefix: prefix}
}

// Join combines the prefix with key, avoiding a doubled "/" when key
// itself starts with one and never stripping either side.
func (p ObjectPath) Join(key string) string {
	if p.KeyPrefix == "" {
		return key
	}
	return p.KeyPrefix + strings.TrimPrefix(key, "/")
}
