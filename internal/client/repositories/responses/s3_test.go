package responses

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/dmitrijs2005/saltkeeper/internal/common"
	"github.com/dmitrijs2005/saltkeeper/internal/records"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObject struct {
	body []byte
	etag string
}

// fakeS3 is an in-memory bucket honouring If-Match and paging.
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string]fakeObject
	version  int
	pageSize int32

	// beforePut runs before a conditional put is checked
	beforePut func()
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string]fakeObject{}, pageSize: 2}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(o.body)), ETag: aws.String(o.etag)}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if in.IfMatch != nil && f.beforePut != nil {
		f.beforePut()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	k := aws.ToString(in.Key)
	if in.IfMatch != nil {
		cur, ok := f.objects[k]
		if !ok {
			return nil, &types.NoSuchKey{}
		}
		if cur.etag != aws.ToString(in.IfMatch) {
			return nil, &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "etag mismatch"}
		}
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.version++
	etag := fmt.Sprintf(`"v%d"`, f.version)
	f.objects[k] = fakeObject{body: body, etag: etag}
	return &s3.PutObjectOutput{ETag: aws.String(etag)}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ETag: aws.String(o.etag)}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := aws.ToString(in.StartAfter)
	if in.ContinuationToken != nil {
		start = aws.ToString(in.ContinuationToken)
	}

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		if k <= start {
			continue
		}
		if int32(len(out.Contents)) == f.pageSize {
			out.IsTruncated = aws.Bool(true)
			out.NextContinuationToken = out.Contents[len(out.Contents)-1].Key
			break
		}
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func newS3Repo(t *testing.T) (*S3Repository, *fakeS3) {
	t.Helper()
	f := newFakeS3()
	r, err := NewS3Repository(f, "responses", "v1/")
	require.NoError(t, err)
	return r, f
}

func TestS3_RequiresBucket(t *testing.T) {
	_, err := NewS3Repository(newFakeS3(), "", "")
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestS3_PutGetDelete(t *testing.T) {
	r, f := newS3Repo(t)
	ctx := context.Background()
	k := key("s1", "q1")

	_, err := r.Get(ctx, k)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	row := currentRow(k, "h", "salt-1")
	require.NoError(t, r.Put(ctx, row))
	assert.Contains(t, f.objects, "v1/answers/s1/q1")

	got, err := r.Get(ctx, k)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(row, got))

	require.NoError(t, r.Delete(ctx, k))
	assert.ErrorIs(t, r.Delete(ctx, k), common.ErrorNotFound)
}

func TestS3_ListLegacyAcrossPages(t *testing.T) {
	r, _ := newS3Repo(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, r.Put(ctx, legacyRow(key("s1", fmt.Sprintf("q%d", i)), "h")))
	}
	require.NoError(t, r.Put(ctx, currentRow(key("s1", "q2a"), "h", "salt")))

	page, err := r.ListLegacy(ctx, "", 3)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, []string{"q0", "q1", "q2"}, []string{page[0].Key.Secondary, page[1].Key.Secondary, page[2].Key.Secondary})

	page, err = r.ListLegacy(ctx, page[2].Key.ID(), 3)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "q3", page[0].Key.Secondary)

	n, err := r.CountLegacy(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)
}

func TestS3_ReplaceLegacy(t *testing.T) {
	r, _ := newS3Repo(t)
	ctx := context.Background()
	k := key("s1", "q1")
	old := legacyRow(k, "h-old")
	require.NoError(t, r.Put(ctx, old))

	require.NoError(t, r.ReplaceLegacy(ctx, old, currentRow(k, "h-new", "salt-1")))

	got, err := r.Get(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, records.FormatCurrent, got.Format)

	assert.ErrorIs(t, r.ReplaceLegacy(ctx, old, currentRow(k, "h-x", "salt-2")), common.ErrVersionConflict)
}

func TestS3_ReplaceLegacy_LosesRace(t *testing.T) {
	r, f := newS3Repo(t)
	ctx := context.Background()
	k := key("s1", "q1")
	old := legacyRow(k, "h-old")
	require.NoError(t, r.Put(ctx, old))

	// a writer slips in between the read and the conditional put
	f.beforePut = func() {
		f.beforePut = nil
		require.NoError(t, r.Put(ctx, currentRow(k, "h-winner", "salt-w")))
	}

	err := r.ReplaceLegacy(ctx, old, currentRow(k, "h-new", "salt-1"))
	assert.ErrorIs(t, err, common.ErrVersionConflict)

	got, err := r.Get(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, "h-winner", got.IntegrityHash)
}

func TestS3_ReplaceLegacy_Deleted(t *testing.T) {
	r, _ := newS3Repo(t)
	k := key("s1", "q1")
	err := r.ReplaceLegacy(context.Background(), legacyRow(k, "h"), currentRow(k, "h2", "s"))
	assert.ErrorIs(t, err, common.ErrVersionConflict)
}

func TestClassifyS3Error(t *testing.T) {
	assert.ErrorIs(t, classifyS3Error(&types.NoSuchKey{}, "get"), common.ErrorNotFound)
	assert.ErrorIs(t, classifyS3Error(&types.NotFound{}, "head"), common.ErrorNotFound)
	assert.ErrorIs(t, classifyS3Error(&smithy.GenericAPIError{Code: "PreconditionFailed"}, "put"), common.ErrVersionConflict)

	boom := errors.New("boom")
	assert.ErrorIs(t, classifyS3Error(boom, "list"), boom)
}
