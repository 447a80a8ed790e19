package domain

import "time"

// DeploymentRecord ties a hosted deployment to the user who created it.
type DeploymentRecord struct {
	UserID    string    `json:"-"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
}

// File encodings understood by the hosting provider.
const (
	EncodingUTF8   = "utf-8"
	EncodingBase64 = "base64"
)

// File is one entry of a deployment payload.
type File struct {
	Path     string
	Data     string
	Encoding string
}

// Upload is a single-file bundle submitted for deployment.
type Upload struct {
	ProjectName string
	Filename    string
	Content     []byte
}

// DeploymentResult is what the hosting provider reports for a created deployment.
type DeploymentResult struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}
