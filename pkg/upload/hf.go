package upload

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/ethpandaops/hfuploadoor/pkg/config"
	"github.com/ethpandaops/hfuploadoor/pkg/hfapi"
	"github.com/sirupsen/logrus"
)

// hfUploader implements Uploader for Hugging Face dataset repositories.
type hfUploader struct {
	log          logrus.FieldLogger
	cfg          *config.HFConfig
	client       *hfapi.Client
	commitPrefix string
	repoID       string
}

// Ensure interface compliance.
var _ Uploader = (*hfUploader)(nil)

// NewHFUploader creates an uploader targeting the Hub endpoint from
// the given configuration. commitPrefix is the run-wide commit message
// prefix (see CommitPrefix).
func NewHFUploader(
	log logrus.FieldLogger,
	cfg *config.HFConfig,
	commitPrefix string,
) Uploader {
	return &hfUploader{
		log:          log.WithField("component", "hf-uploader"),
		cfg:          cfg,
		client:       hfapi.New(cfg.Endpoint, cfg.Token),
		commitPrefix: commitPrefix,
	}
}

// EnsureTarget resolves the target repository ID and creates the
// dataset repository, treating "already exists" as success. Any other
// creation error aborts the run before the upload loop starts.
func (u *hfUploader) EnsureTarget(ctx context.Context) error {
	repoID, err := u.resolveRepoID(ctx)
	if err != nil {
		return err
	}

	u.log.WithField("repo", repoID).Info("Checking/creating repository")

	req := hfapi.CreateRepoRequest{
		Name:    u.cfg.RepoName,
		Type:    hfapi.RepoTypeDataset,
		Private: u.cfg.Private,
	}

	// The Hub derives the namespace from the token unless an
	// organization is named explicitly.
	if u.cfg.Username != "" {
		req.Organization = u.cfg.Username
	}

	err = u.client.CreateRepo(ctx, req)

	switch {
	case err == nil:
		u.log.Info("Repository created")
	case hfapi.IsConflict(err):
		u.log.Info("Repository already exists, continuing with upload")
	default:
		return fmt.Errorf("creating repository %s: %w", repoID, err)
	}

	return nil
}

// Upload walks localDir and commits every file to the dataset
// repository at its working-directory-relative path.
func (u *hfUploader) Upload(ctx context.Context, localDir string) error {
	info, err := os.Stat(localDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("results directory not found at %s", localDir)
	}

	repoID, err := u.resolveRepoID(ctx)
	if err != nil {
		return err
	}

	prefix := repoPrefix(localDir)

	var count int

	err = filepath.Walk(localDir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(localDir, p)
		if err != nil {
			return fmt.Errorf("computing relative path: %w", err)
		}

		repoPath := path.Join(prefix, filepath.ToSlash(relPath))

		u.log.WithField("path", repoPath).Info("Uploading file")

		uploadErr := u.client.UploadFile(ctx, hfapi.UploadFileRequest{
			RepoID:        repoID,
			RepoType:      hfapi.RepoTypeDataset,
			PathInRepo:    repoPath,
			LocalPath:     p,
			CommitMessage: u.commitPrefix + " - " + repoPath,
		})
		if uploadErr != nil {
			return fmt.Errorf("uploading %s: %w", repoPath, uploadErr)
		}

		count++

		return nil
	})
	if err != nil {
		return err
	}

	u.log.WithFields(logrus.Fields{
		"files": count,
		"repo":  repoID,
		"url":   u.datasetURL(repoID),
	}).Info("Upload completed")

	return nil
}

// resolveRepoID returns <namespace>/<repoName>, deriving the namespace
// from the token via whoami when no username is configured. The
// whoami call happens at most once per run and never when a username
// is set.
func (u *hfUploader) resolveRepoID(ctx context.Context) (string, error) {
	if u.repoID != "" {
		return u.repoID, nil
	}

	username := u.cfg.Username
	if username == "" {
		u.log.Info("No username configured, retrieving from API token")

		user, err := u.client.Whoami(ctx)
		if err != nil {
			return "", fmt.Errorf("resolving username from token: %w", err)
		}

		if user.Name == "" {
			return "", fmt.Errorf("token identity has no username, set HF_USERNAME")
		}

		username = user.Name
		u.log.WithField("username", username).Info("Username retrieved")
	}

	u.repoID = username + "/" + u.cfg.RepoName

	return u.repoID, nil
}

// datasetURL returns the public URL of the dataset repository.
func (u *hfUploader) datasetURL(repoID string) string {
	return u.cfg.Endpoint + "/datasets/" + repoID
}
