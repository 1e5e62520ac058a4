package cdn

import (
	"time"

	"github.com/veranemoloko/tgdl-core/internal/domain"
)

// FileInfo is the CDN descriptor of a stored file.
type FileInfo struct {
	Path        string            `json:"path"`
	Size        int64             `json:"size"`
	ContentType string            `json:"content_type"`
	URL         string            `json:"url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func (f *FileInfo) clone() *FileInfo {
	c := *f
	if f.Metadata != nil {
		c.Metadata = make(map[string]string, len(f.Metadata))
		for k, v := range f.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// Collection is a CDN-side bundle of several files.
type Collection struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	URL       string     `json:"url"`
	Files     []FileInfo `json:"files"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// CollectionRequest asks for a bundle of Files on behalf of PrincipalID.
// Tier is the principal's retention class and decides the bundle expiry.
type CollectionRequest struct {
	Files       []string
	PrincipalID string
	Tier        domain.RetentionTier
	Name        string
}

// HealthStatus is the CDN liveness answer.
type HealthStatus struct {
	Status string `json:"status"`
}

type collectionBody struct {
	Files        []string `json:"files"`
	Name         string   `json:"name"`
	ExpiresHours int      `json:"expires_hours"`
	Tier         string   `json:"tier"`
}

type fileAccessBody struct {
	FilePath      string `json:"file_path"`
	PrincipalID   string `json:"principal_id"`
	DurationHours int    `json:"duration_hours"`
}

type fileAccessResponse struct {
	AccessToken string `json:"access_token"`
}
