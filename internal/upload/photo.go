// Package upload はサインアップ時のプロフィール画像の保存を提供する。
package upload

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// URLPrefix は保存済み画像を配信するパスの接頭辞。
const URLPrefix = "/uploads/"

var (
	// ErrUnsupportedType は許可されていない画像形式を表す。
	ErrUnsupportedType = errors.New("unsupported photo type")
	// ErrTooLarge は上限サイズを超えた画像を表す。
	ErrTooLarge = errors.New("photo too large")
)

var allowedTypes = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}

// PhotoStore はアップロード画像をディレクトリに保存する。
type PhotoStore struct {
	dir      string
	maxBytes int64
}

// NewPhotoStore はPhotoStoreを生成する。ディレクトリが無い場合は作成する。
func NewPhotoStore(dir string, maxBytes int64) (*PhotoStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &PhotoStore{dir: dir, maxBytes: maxBytes}, nil
}

// Dir は保存先ディレクトリを返す。
func (s *PhotoStore) Dir() string {
	return s.dir
}

// Save は画像の内容から形式を判定し、UUIDのファイル名で保存する。
// 戻り値は配信用のパス（/uploads/<uuid>.<ext>）。
func (s *PhotoStore) Save(r io.ReadSeeker) (string, error) {
	mtype, err := mimetype.DetectReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to detect photo type: %w", err)
	}
	if !mimetype.EqualsAny(mtype.String(), allowedTypes...) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mtype.String())
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind photo: %w", err)
	}

	name := uuid.NewString() + mtype.Extension()
	dst, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create photo file: %w", err)
	}

	n, err := io.Copy(dst, io.LimitReader(r, s.maxBytes+1))
	closeErr := dst.Close()
	if err == nil && n > s.maxBytes {
		err = ErrTooLarge
	}
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(filepath.Join(s.dir, name))
		if errors.Is(err, ErrTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("failed to write photo: %w", err)
	}

	return URLPrefix + name, nil
}

// Remove はSaveが返した参照の画像を削除する。存在しない場合は何もしない。
func (s *PhotoStore) Remove(ref string) {
	if !strings.HasPrefix(ref, URLPrefix) {
		return
	}
	name := path.Base(ref)
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to remove photo",
			slog.String("photo", ref),
			slog.String("error", err.Error()),
		)
	}
}
