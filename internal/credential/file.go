package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/habat-tech/todrive/internal/crypto"
	"github.com/habat-tech/todrive/internal/model"
)

// FilePerms restricts credential files to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating parent directories.
const DirPerms = 0o700

// fileEnvelope is the on-disk session format. Exactly one field is set:
// Record when no encryptor is configured, Sealed otherwise.
type fileEnvelope struct {
	Record *model.CredentialRecord `json:"record,omitempty"`
	Sealed []byte                  `json:"sealed,omitempty"`
}

// FileStore keeps both credential files at fixed paths on local disk.
type FileStore struct {
	sessionPath      string
	clientConfigPath string
	encryptor        crypto.Encryptor // optional
	logger           *slog.Logger
}

// NewFileStore creates a FileStore. encryptor may be nil to store the record in plain JSON.
func NewFileStore(sessionPath, clientConfigPath string, encryptor crypto.Encryptor, logger *slog.Logger) *FileStore {
	return &FileStore{
		sessionPath:      sessionPath,
		clientConfigPath: clientConfigPath,
		encryptor:        encryptor,
		logger:           logger,
	}
}

// SessionPath returns the session record location.
func (s *FileStore) SessionPath() string { return s.sessionPath }

// ClientConfigPath returns the client configuration location.
func (s *FileStore) ClientConfigPath() string { return s.clientConfigPath }

// Load reads the session record. Missing and unparsable files both yield (nil, nil).
func (s *FileStore) Load(ctx context.Context) (*model.CredentialRecord, error) {
	data, err := os.ReadFile(s.sessionPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("credential: reading %s: %w", s.sessionPath, err)
	}

	var env fileEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.logger.Warn("ignoring unparsable session file",
			slog.String("path", s.sessionPath),
			slog.String("error", err.Error()),
		)
		return nil, nil
	}

	rec := env.Record
	if len(env.Sealed) > 0 {
		if s.encryptor == nil {
			s.logger.Warn("session file is sealed but no encryptor is configured",
				slog.String("path", s.sessionPath),
			)
			return nil, nil
		}
		plain, err := s.encryptor.Decrypt(ctx, env.Sealed)
		if err != nil {
			return nil, fmt.Errorf("credential: unsealing %s: %w", s.sessionPath, err)
		}
		rec = &model.CredentialRecord{}
		if err := json.Unmarshal(plain, rec); err != nil {
			s.logger.Warn("ignoring unparsable sealed session",
				slog.String("path", s.sessionPath),
				slog.String("error", err.Error()),
			)
			return nil, nil
		}
	}

	if !usable(rec) {
		return nil, nil
	}
	return rec, nil
}

// Save writes rec atomically, sealing it first when an encryptor is configured.
// Token values are never logged.
func (s *FileStore) Save(ctx context.Context, rec *model.CredentialRecord) error {
	env := fileEnvelope{Record: rec}
	if s.encryptor != nil {
		plain, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("credential: encoding: %w", err)
		}
		sealed, err := s.encryptor.Encrypt(ctx, plain)
		if err != nil {
			return fmt.Errorf("credential: sealing: %w", err)
		}
		env = fileEnvelope{Sealed: sealed}
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("credential: encoding: %w", err)
	}
	return writeFileAtomic(s.sessionPath, data)
}

// PutClientConfig overwrites the client configuration file with data.
func (s *FileStore) PutClientConfig(_ context.Context, data []byte) error {
	return writeFileAtomic(s.clientConfigPath, data)
}

// ClientConfig reads the client configuration file.
func (s *FileStore) ClientConfig(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.clientConfigPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoClientConfig
	}
	if err != nil {
		return nil, fmt.Errorf("credential: reading %s: %w", s.clientConfigPath, err)
	}
	return data, nil
}

// writeFileAtomic writes data to a temp file in the same directory and
// renames it over path, so readers never observe a partial file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DirPerms); err != nil {
		return fmt.Errorf("credential: creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".credential-*.tmp")
	if err != nil {
		return fmt.Errorf("credential: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("credential: setting permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("credential: writing: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("credential: syncing: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("credential: closing: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("credential: renaming: %w", err)
	}

	success = true
	return nil
}
