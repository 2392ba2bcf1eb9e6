// manager_test.go - Tests for report storage
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func createTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestNewLocalStore(t *testing.T) {
	t.Run("creates export directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "exports", "nested")

		store, err := NewLocalStore(dir)
		require.NoError(t, err)

		_, err = os.Stat(dir)
		assert.NoError(t, err)
		assert.Equal(t, dir, store.Dir())
	})
}

func TestLocalStore_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("writes the report", func(t *testing.T) {
		store := createTestStore(t)

		location, err := store.Save(ctx, "decision_rapport.txt", "text/plain", []byte("Bonjour"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(store.Dir(), "decision_rapport.txt"), location)

		data, err := os.ReadFile(location)
		require.NoError(t, err)
		assert.Equal(t, "Bonjour", string(data))

		entry, err := store.Get("decision_rapport.txt")
		require.NoError(t, err)
		assert.Equal(t, int64(7), entry.Size)
		assert.Equal(t, "text/plain", entry.ContentType)
	})

	t.Run("replaces an existing report", func(t *testing.T) {
		store := createTestStore(t)

		_, err := store.Save(ctx, "a_rapport.txt", "text/plain", []byte("v1"))
		require.NoError(t, err)
		location, err := store.Save(ctx, "a_rapport.txt", "text/plain", []byte("version 2"))
		require.NoError(t, err)

		data, err := os.ReadFile(location)
		require.NoError(t, err)
		assert.Equal(t, "version 2", string(data))

		list, err := store.List(10)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("leaves no temporary files", func(t *testing.T) {
		store := createTestStore(t)
		_, err := store.Save(ctx, "a_rapport.pdf", "application/pdf", []byte("%PDF-"))
		require.NoError(t, err)

		files, err := os.ReadDir(store.Dir())
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, "a_rapport.pdf", files[0].Name())
	})

	t.Run("rejects path traversal", func(t *testing.T) {
		store := createTestStore(t)
		for _, name := range []string{"", ".", "..", "../evil.txt", "sub/dir.txt", `win\evil.txt`} {
			_, err := store.Save(ctx, name, "text/plain", []byte("x"))
			assert.ErrorIs(t, err, ErrInvalidName, name)
		}
	})

	t.Run("honours cancelled context", func(t *testing.T) {
		store := createTestStore(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := store.Save(cctx, "a.txt", "text/plain", []byte("x"))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestLocalStore_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	store := createTestStore(t)

	for i := 0; i < 3; i++ {
		_, err := store.Save(ctx, fmt.Sprintf("r%d.txt", i), "text/plain", []byte("x"))
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	list, err := store.List(2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "r2.txt", list[0].Name, "most recent first")

	require.NoError(t, store.Delete(ctx, "r1.txt"))
	_, err = os.Stat(filepath.Join(store.Dir(), "r1.txt"))
	assert.True(t, os.IsNotExist(err))

	_, err = store.Get("r1.txt")
	assert.Error(t, err)
	assert.Error(t, store.Delete(ctx, "r1.txt"))
}

func TestLocalStore_ConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	store := createTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := store.Save(ctx, fmt.Sprintf("file%d.txt", n), "text/plain", []byte("content"))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	list, err := store.List(0)
	require.NoError(t, err)
	assert.Len(t, list, 10)
}

type mockObjectClient struct {
	mock.Mock
}

func (m *mockObjectClient) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	data, _ := io.ReadAll(reader)
	args := m.Called(bucketName, objectName, string(data), objectSize, opts.ContentType)
	return minio.UploadInfo{Bucket: bucketName, Key: objectName, Size: objectSize}, args.Error(0)
}

func (m *mockObjectClient) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	return m.Called(bucketName, objectName).Error(0)
}

func TestBucketStore(t *testing.T) {
	ctx := context.Background()

	t.Run("uploads under prefix", func(t *testing.T) {
		client := new(mockObjectClient)
		client.On("PutObject", "reports", "eclaireur/decision_rapport.rtf", "{\\rtf1}", int64(7), "application/rtf").
			Return(nil).Once()

		store := newBucketStore(client, "reports", "eclaireur")
		location, err := store.Save(ctx, "decision_rapport.rtf", "application/rtf", []byte("{\\rtf1}"))
		require.NoError(t, err)
		assert.Equal(t, "s3://reports/eclaireur/decision_rapport.rtf", location)

		entry, err := store.Get("decision_rapport.rtf")
		require.NoError(t, err)
		assert.Equal(t, location, entry.Location)
		client.AssertExpectations(t)
	})

	t.Run("upload failure is not recorded", func(t *testing.T) {
		client := new(mockObjectClient)
		client.On("PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(errors.New("access denied"))

		store := newBucketStore(client, "reports", "")
		_, err := store.Save(ctx, "a.txt", "text/plain", []byte("x"))
		assert.ErrorContains(t, err, "access denied")

		list, err := store.List(0)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("delete removes object", func(t *testing.T) {
		client := new(mockObjectClient)
		client.On("PutObject", mock.Anything, "a.txt", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		client.On("RemoveObject", "reports", "a.txt").Return(nil).Once()

		store := newBucketStore(client, "reports", "")
		_, err := store.Save(ctx, "a.txt", "text/plain", []byte("x"))
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, "a.txt"))
		assert.Error(t, store.Delete(ctx, "a.txt"))
		client.AssertExpectations(t)
	})

	t.Run("rejects path traversal", func(t *testing.T) {
		store := newBucketStore(new(mockObjectClient), "reports", "")
		_, err := store.Save(ctx, "../x.txt", "text/plain", nil)
		assert.ErrorIs(t, err, ErrInvalidName)
	})
}
