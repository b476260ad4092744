package task

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetFdsClosesPrior(t *testing.T) {
	r1, w1, err := os.Pipe()
	require.NoError(t, err)

	rec := &Record{}
	rec.SetFds(r1, w1, w1)

	r2, w2, err := os.Pipe()
	require.NoError(t, err)
	defer r2.Close()
	defer w2.Close()

	rec.SetFds(r2, w2, w2)

	// r1/w1 should now be closed; writing to w1 should fail.
	_, err = w1.Write([]byte("x"))
	assert.Error(t, err)
}

func TestSetArgvArity(t *testing.T) {
	rec := &Record{Kind: KindMount}
	assert.Error(t, rec.SetArgv([]string{"only-one"}))
	assert.NoError(t, rec.SetArgv([]string{"proc", "/dev/shm"}))
}

func TestChrootPathFromArgv(t *testing.T) {
	rec := &Record{Kind: KindChrootUID1}
	require.NoError(t, rec.SetArgv([]string{"/srv/root", "/bin/true"}))
	assert.Equal(t, "/srv/root", rec.ChrootPath)
	assert.NoError(t, rec.CheckChrootPath())
	assert.Equal(t, []string{"/bin/true"}, rec.CommandArgv())
}

func TestCheckChrootPathRejectsRelative(t *testing.T) {
	rec := &Record{Kind: KindChrootUID1}
	require.NoError(t, rec.SetArgv([]string{"relative/path", "/bin/true"}))
	assert.Error(t, rec.CheckChrootPath())
}
