package blob

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

type azureClient interface {
	UploadBuffer(ctx context.Context, containerName, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
	CreateContainer(ctx context.Context, containerName string, o *azblob.CreateContainerOptions) (azblob.CreateContainerResponse, error)
	URL() string
}

// Azure stores snapshots as block blobs in one container.
type Azure struct {
	client    azureClient
	container string
}

// NewAzureFromConnectionString uses a storage account connection string.
func NewAzureFromConnectionString(connStr, container string) (*Azure, error) {
	c, err := azblob.NewClientFromConnectionString(connStr, nil)
	if err != nil {
		return nil, fmt.Errorf("azure blob client: %w", err)
	}
	return &Azure{client: c, container: container}, nil
}

// NewAzureWithDefaultCredential authenticates with azidentity's default chain
// (environment, workload identity, managed identity, az CLI).
func NewAzureWithDefaultCredential(accountURL, container string) (*Azure, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}
	c, err := azblob.NewClient(accountURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("azure blob client: %w", err)
	}
	return &Azure{client: c, container: container}, nil
}

// EnsureContainer creates the container when it does not exist yet.
func (a *Azure) EnsureContainer(ctx context.Context) error {
	_, err := a.client.CreateContainer(ctx, a.container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return fmt.Errorf("create container %s: %w", a.container, err)
	}
	return nil
}

// Put implements Store.
func (a *Azure) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	opts := &azblob.UploadBufferOptions{HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType}}
	if _, err := a.client.UploadBuffer(ctx, a.container, name, data, opts); err != nil {
		return "", err
	}
	return objectURL(a.client.URL(), a.container, name), nil
}

func objectURL(base, container, name string) string {
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(container) + "/" + url.PathEscape(name)
}
