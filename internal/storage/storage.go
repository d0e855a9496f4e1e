package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ErrUnsupportedType indica documento em formato não aceito.
var ErrUnsupportedType = errors.New("storage: tipo de arquivo não suportado")

// MaxDocumentSize limita o tamanho de documentos profissionais (10 MB).
const MaxDocumentSize = 10 << 20

var allowedTypes = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
}

// UploadInput representa uma operação de upload simples.
type UploadInput struct {
	Key                string
	Body               []byte
	ContentType        string
	ContentDisposition string
}

// UploadResult descreve o artefato persistido.
type UploadResult struct {
	URL  string
	ETag string
}

// Uploader define comportamento básico para armazenar blobs.
type Uploader interface {
	Upload(ctx context.Context, input UploadInput) (*UploadResult, error)
}

// DetectDocumentType confere o conteúdo real do arquivo e devolve o content type aceito.
func DetectDocumentType(body []byte) (string, error) {
	ct := http.DetectContentType(body)
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	if _, ok := allowedTypes[ct]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, ct)
	}
	return ct, nil
}

// DocumentKey monta a chave do objeto: profissionais/<id do usuário>/<tipo>/<uuid><ext>.
// O CPF nunca entra na chave, que aparece na URL pública.
func DocumentKey(ownerID uuid.UUID, kind, contentType string) string {
	return path.Join("profissionais", ownerID.String(), kind, uuid.NewString()+allowedTypes[contentType])
}
