package s3source

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/Abraxas-365/coursekb/adapters/pdfloader"
	"github.com/Abraxas-365/coursekb/datasource"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Client is the subset of *s3.Client the source calls
type Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Source loads course material from a bucket prefix; PDFs become one document per page
type S3Source struct {
	client Client
	bucket string
	prefix string
}

var _ datasource.DataSource = (*S3Source)(nil)

func NewS3Source(client Client, bucket, prefix string) *S3Source {
	return &S3Source{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

func (s *S3Source) Load(ctx context.Context, opts ...datasource.Option) ([]datasource.Document, error) {
	options := datasource.NewLoadOptions(opts...)

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	}

	var documents []datasource.Document
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	dir := strings.TrimSuffix(s.prefix, "/")

	for paginator.HasMorePages() && !options.Full(len(documents)) {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, datasource.NewDataSourceError("s3", "Load", err, datasource.ErrCodeInternal, "failed to list objects")
		}

		for _, obj := range page.Contents {
			if options.Full(len(documents)) {
				break
			}

			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			parent := path.Dir(key)
			if parent == "." {
				parent = ""
			}
			if !options.Recursive && parent != dir {
				continue
			}

			metadata := map[string]interface{}{
				"key":           key,
				"last_modified": aws.ToTime(obj.LastModified),
				"size":          aws.ToInt64(obj.Size),
				"etag":          aws.ToString(obj.ETag),
			}

			if !options.Accept(metadata) {
				continue
			}

			content, err := s.getObjectContent(ctx, key)
			if err != nil {
				return nil, err
			}

			source := "s3://" + s.bucket + "/" + key
			if strings.EqualFold(path.Ext(key), ".pdf") {
				pages, err := pdfloader.ParseBytes(content, source, map[string]interface{}{"key": key})
				if err != nil {
					return nil, err
				}
				documents = append(documents, pages...)
				continue
			}

			documents = append(documents, datasource.Document{
				Content:  string(content),
				Metadata: metadata,
				Source:   source,
			})
		}
	}

	return documents, nil
}

func (s *S3Source) getObjectContent(ctx context.Context, key string) ([]byte, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}

	result, err := s.client.GetObject(ctx, input)
	if err != nil {
		return nil, datasource.NewDataSourceError("s3", "getObjectContent", err, datasource.ErrCodeInternal, "failed to get object content")
	}
	defer result.Body.Close()

	content, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, datasource.NewDataSourceError("s3", "getObjectContent", err, datasource.ErrCodeInternal, "failed to read object content")
	}

	return content, nil
}
