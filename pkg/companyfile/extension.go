package companyfile

import (
	"path/filepath"
	"strings"

	"github.com/argo-books/argo-core/pkg/footer"
)

// File extensions.
const (
	ExtCompany  = ".argo"
	ExtBackup   = ".argobk"
	ExtTemplate = ".argotemplate"
)

// KindOfPath returns file kind by the extension of p. Unknown extensions
// are treated as company files.
func KindOfPath(p string) footer.Kind {
	switch strings.ToLower(filepath.Ext(p)) {
	case ExtBackup:
		return footer.KindBackup
	case ExtTemplate:
		return footer.KindTemplate
	default:
		return footer.KindCompany
	}
}
