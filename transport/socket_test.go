package transport

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/indigo-web/connector/transport/dummy"
	"github.com/stretchr/testify/require"
)

func openJob(t *testing.T) *SendfileJob {
	f, err := os.Create(filepath.Join(t.TempDir(), "file"))
	require.NoError(t, err)

	return &SendfileJob{File: f}
}

func requireClosed(t *testing.T, job *SendfileJob) {
	require.ErrorIs(t, job.File.Close(), os.ErrClosed, "the job's file must be closed")
}

func TestSocketSendfile(t *testing.T) {
	t.Run("take passes ownership", func(t *testing.T) {
		sock := NewSocket(dummy.NewConn(), 0)
		job := openJob(t)
		sock.SetSendfile(job)
		require.Same(t, job, sock.Sendfile())

		require.Same(t, job, sock.takeSendfile())
		require.Nil(t, sock.Sendfile())
		require.NoError(t, sock.Close())
		require.NoError(t, job.Close())
	})

	t.Run("close releases the pending job", func(t *testing.T) {
		sock := NewSocket(dummy.NewConn(), 0)
		job := openJob(t)
		sock.SetSendfile(job)
		require.NoError(t, sock.Close())
		require.Nil(t, sock.Sendfile())
		requireClosed(t, job)
	})

	t.Run("scheduling on a closed socket", func(t *testing.T) {
		sock := NewSocket(dummy.NewConn(), 0)
		require.NoError(t, sock.Close())

		job := openJob(t)
		sock.SetSendfile(job)
		require.Nil(t, sock.Sendfile())
		requireClosed(t, job)
	})

	t.Run("concurrent close", func(t *testing.T) {
		for range 100 {
			sock := NewSocket(dummy.NewConn(), 0)
			job := openJob(t)

			var wg sync.WaitGroup
			wg.Add(2)
			go func() {
				defer wg.Done()
				sock.SetSendfile(job)
			}()
			go func() {
				defer wg.Done()
				_ = sock.Close()
			}()
			wg.Wait()

			requireClosed(t, job)
		}
	})
}
