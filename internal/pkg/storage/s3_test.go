package storage

import "testing"

func TestGetURL(t *testing.T) {
	minio := &S3Storage{bucket: "statements", endpoint: "http://localhost:9000"}
	if got := minio.GetURL("a/b.csv"); got != "http://localhost:9000/statements/a/b.csv" {
		t.Fatalf("unexpected MinIO url %q", got)
	}

	aws := &S3Storage{bucket: "statements"}
	if got := aws.GetURL("a/b.csv"); got != "https://statements.s3.amazonaws.com/a/b.csv" {
		t.Fatalf("unexpected S3 url %q", got)
	}
}
