package gdrive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const wavMimeType = "audio/wav"

// Syncer uploads finished recordings into one Drive folder. Uploading the
// same local path again replaces the earlier upload.
type Syncer struct {
	service  *drive.Service
	folderID string
	fileIDs  map[string]string
	mu       sync.Mutex
}

func NewSyncer(ctx context.Context, credPath, folderID string) (*Syncer, error) {
	creds, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	config, err := google.CredentialsFromJSONWithTypeAndParams(ctx, creds, google.ServiceAccount, google.CredentialsParams{Scopes: []string{drive.DriveFileScope}})
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	svc, err := drive.NewService(ctx, option.WithCredentials(config))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return newSyncer(svc, folderID), nil
}

func newSyncer(svc *drive.Service, folderID string) *Syncer {
	return &Syncer{
		service:  svc,
		folderID: folderID,
		fileIDs:  make(map[string]string),
	}
}

// Upload sends localPath and returns the Drive file id.
func (s *Syncer) Upload(ctx context.Context, localPath string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer func() { _ = f.Close() }()

	if fileID, ok := s.fileIDs[localPath]; ok {
		_, err = s.service.Files.Update(fileID, &drive.File{}).Media(f).Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("drive update: %w", err)
		}
		return fileID, nil
	}

	file := &drive.File{
		Name:     "soundman-" + filepath.Base(localPath),
		MimeType: wavMimeType,
	}
	if s.folderID != "" {
		file.Parents = []string{s.folderID}
	}

	created, err := s.service.Files.Create(file).Media(f).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("drive create: %w", err)
	}

	s.fileIDs[localPath] = created.Id
	return created.Id, nil
}
