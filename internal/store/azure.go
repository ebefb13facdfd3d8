package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// BlobMirror uploads artifacts to an Azure Blob Storage container under an
// optional prefix.
type BlobMirror struct {
	client    *azblob.Client
	container string
	prefix    string
}

// NewBlobMirror authenticates with the default Azure credential chain.
func NewBlobMirror(accountURL, container, prefix string) (*BlobMirror, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}
	return NewBlobMirrorWithCredential(accountURL, container, prefix, cred)
}

// NewBlobMirrorWithCredential uses the given credential.
func NewBlobMirrorWithCredential(accountURL, container, prefix string, cred azcore.TokenCredential) (*BlobMirror, error) {
	if accountURL == "" || container == "" {
		return nil, fmt.Errorf("blob mirror needs an account URL and a container")
	}
	client, err := azblob.NewClient(accountURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("azure blob client: %w", err)
	}
	return &BlobMirror{client: client, container: container, prefix: strings.Trim(prefix, "/")}, nil
}

// BlobName joins the prefix and name.
func (b *BlobMirror) BlobName(name string) string {
	if b.prefix == "" {
		return name
	}
	return b.prefix + "/" + name
}

// Upload implements Uploader.
func (b *BlobMirror) Upload(ctx context.Context, name string, data []byte) error {
	_, err := b.client.UploadBuffer(ctx, b.container, b.BlobName(name), data, nil)
	return err
}
