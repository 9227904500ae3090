package s3source

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/Abraxas-365/coursekb/datasource"
	"github.com/Abraxas-365/coursekb/internal/pdftest"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBucket map[string][]byte

func (f fakeBucket) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f fakeBucket) ListObjectsV2(_ context.Context, _ *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range []string{"materials/", "materials/lecture1.pdf", "materials/notes.txt", "materials/old/lecture0.pdf"} {
		if _, ok := f[k]; !ok {
			continue
		}
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(f[k]))),
			LastModified: aws.Time(time.Unix(1700000000, 0)),
			ETag:         aws.String("e"),
		})
	}
	return out, nil
}

func newBucket() fakeBucket {
	return fakeBucket{
		"materials/":                nil,
		"materials/lecture1.pdf":     pdftest.Build("Perceptrons", "Backpropagation"),
		"materials/notes.txt":        []byte("Review chapter 3."),
		"materials/old/lecture0.pdf": pdftest.Build("Linear algebra"),
	}
}

func TestS3Source_Load(t *testing.T) {
	src := NewS3Source(newBucket(), "course", "materials/")

	docs, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 3)

	assert.Equal(t, "s3://course/materials/lecture1.pdf", docs[0].Source)
	assert.Contains(t, docs[0].Content, "Perceptrons")
	assert.Equal(t, 0, docs[0].Metadata["page"])
	assert.Equal(t, "2", docs[1].Metadata["page_label"])
	assert.Equal(t, "Review chapter 3.", docs[2].Content)
}

func TestS3Source_LoadOptions(t *testing.T) {
	src := NewS3Source(newBucket(), "course", "materials/")

	docs, err := src.Load(context.Background(), datasource.WithRecursive(true), datasource.WithFilter(func(meta map[string]interface{}) bool {
		return meta["key"] != "materials/notes.txt"
	}))
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "s3://course/materials/old/lecture0.pdf", docs[2].Source)

	docs, err = src.Load(context.Background(), datasource.WithMaxItems(1))
	require.NoError(t, err)
	assert.Len(t, docs, 2, "a PDF counts its pages once loaded")
}
