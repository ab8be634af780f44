// Package changedetect implements the per-file change-detection state
// machine (spec.md §4.5): deciding between unchanged, needs-reindex,
// duplicate, and vanished, using (inode, content digest) comparisons.
package changedetect

import (
	"crypto/md5"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/standardbeagle/finja/internal/ferrors"
	"github.com/standardbeagle/finja/internal/pathdict"
	"github.com/standardbeagle/finja/internal/store"
)

// chunkSize is the streaming read size for content hashing (spec.md
// §4.5 step 4).
const chunkSize = 1 << 20

// Result is the change detector's verdict for one visited file.
type Result struct {
	FileID          int64
	Reindex         bool // the indexer should tokenize this file
	NeedSecondPass  bool // a duplicate diverged; the reindex orchestrator must re-walk
}

// Detector wraps the store and path dictionary the state machine needs.
type Detector struct {
	st    *store.Store
	paths *pathdict.Dict
}

// New returns a ready-to-use change detector.
func New(st *store.Store, paths *pathdict.Dict) *Detector {
	return &Detector{st: st, paths: paths}
}

// Detect runs the state machine for one file. fsPath is used for every
// disk operation (stat, hash, read); storedPath is the root-relative
// path recorded in the index and shown in messages, so the database and
// display output stay stable across where the project happens to be
// checked out (spec.md §4.4).
func (d *Detector) Detect(fsPath, storedPath string) (Result, error) {
	info, err := os.Lstat(fsPath)
	if err != nil {
		return Result{}, ferrors.NewVanished(storedPath, err)
	}
	if !info.Mode().IsRegular() {
		return Result{}, ferrors.NewNotPlainFile(storedPath)
	}

	inode, err := inodeOf(info)
	if err != nil {
		return Result{}, ferrors.NewNotPlainFile(storedPath)
	}

	packedPath, err := d.paths.Compress(storedPath)
	if err != nil {
		return Result{}, ferrors.NewStore("compress path", err)
	}

	fileID, oldInode, oldMD5, existed, err := d.lookup(packedPath)
	if err != nil {
		return Result{}, ferrors.NewStore("lookup file", err)
	}

	if existed && oldInode != nil && *oldInode == inode {
		if err := d.markFound(fileID); err != nil {
			return Result{}, ferrors.NewStore("mark found", err)
		}
		return Result{FileID: fileID, Reindex: false}, nil
	}

	newMD5, err := hashFile(fsPath)
	if err != nil {
		return Result{}, ferrors.NewVanished(storedPath, err)
	}

	var needSecondPass bool
	if oldMD5 != nil {
		count, err := d.countByMD5(oldMD5)
		if err != nil {
			return Result{}, ferrors.NewStore("count duplicates", err)
		}
		if count > 1 && !bytesEqual(oldMD5, newMD5) {
			needSecondPass = true
			if err := d.clearDuplicates(oldMD5); err != nil {
				return Result{}, ferrors.NewStore("clear duplicates", err)
			}
		}
	}

	duplicatedCount, err := d.countByMD5(newMD5)
	if err != nil {
		return Result{}, ferrors.NewStore("count new duplicates", err)
	}
	duplicated := duplicatedCount > 0

	if existed {
		if err := d.updateFile(fileID, newMD5, inode); err != nil {
			return Result{}, ferrors.NewStore("update file", err)
		}
	} else {
		fileID, err = d.insertFile(packedPath, newMD5, inode)
		if err != nil {
			return Result{}, ferrors.NewStore("insert file", err)
		}
	}

	if duplicated {
		return Result{FileID: fileID, NeedSecondPass: needSecondPass}, nil
	}
	return Result{
		FileID:         fileID,
		Reindex:        oldMD5 == nil || !bytesEqual(oldMD5, newMD5),
		NeedSecondPass: needSecondPass,
	}, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (d *Detector) lookup(packedPath []byte) (fileID int64, oldInode *int64, oldMD5 []byte, existed bool, err error) {
	var inode sql.NullInt64
	var md5 []byte
	row := d.st.DB().QueryRow(`SELECT id, inode, md5 FROM file WHERE path = ?`, packedPath)
	err = row.Scan(&fileID, &inode, &md5)
	if err == sql.ErrNoRows {
		return 0, nil, nil, false, nil
	}
	if err != nil {
		return 0, nil, nil, false, err
	}
	if inode.Valid {
		v := inode.Int64
		oldInode = &v
	}
	return fileID, oldInode, md5, true, nil
}

func (d *Detector) markFound(fileID int64) error {
	_, err := d.st.DB().Exec(`UPDATE file SET found = 1 WHERE id = ?`, fileID)
	return err
}

func (d *Detector) countByMD5(md5 []byte) (int, error) {
	var n int
	err := d.st.DB().QueryRow(`SELECT COUNT(*) FROM file WHERE md5 = ?`, md5).Scan(&n)
	return n, err
}

func (d *Detector) clearDuplicates(md5 []byte) error {
	_, err := d.st.DB().Exec(`UPDATE file SET inode = NULL, md5 = NULL WHERE md5 = ?`, md5)
	return err
}

func (d *Detector) updateFile(fileID int64, md5 []byte, inode int64) error {
	_, err := d.st.DB().Exec(
		`UPDATE file SET md5 = ?, inode = ?, found = 1 WHERE id = ?`,
		md5, inode, fileID,
	)
	return err
}

func (d *Detector) insertFile(packedPath, md5 []byte, inode int64) (int64, error) {
	res, err := d.st.DB().Exec(
		`INSERT INTO file(path, md5, inode, found) VALUES (?, ?, ?, 1)`,
		packedPath, md5, inode,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func hashFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h := md5.New()
	buf := make([]byte, chunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("hash %s: %w", path, err)
		}
	}
	return h.Sum(nil), nil
}
