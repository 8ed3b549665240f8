package mailbox

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/znz-systems/mailsift/internal/models"
)

// MaildirProvider reads a Maildir++ tree: the inbox in root/{cur,new} and
// subfolders such as root/.Drafts, root/.Junk and root/.Trash.
type MaildirProvider struct {
	root string
}

func NewMaildirProvider(root string) (*MaildirProvider, error) {
	root = filepath.Clean(strings.TrimSpace(root))
	info, err := os.Stat(filepath.Join(root, "cur"))
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%s is not a maildir", root)
	}
	return &MaildirProvider{root: root}, nil
}

func (p *MaildirProvider) FetchInbox(ctx context.Context, limit int) ([]models.EmailRecord, error) {
	if limit <= 0 || limit > DefaultLimit {
		limit = DefaultLimit
	}
	return p.readFolder(ctx, p.root, limit)
}

func (p *MaildirProvider) FetchDrafts(ctx context.Context) ([]models.EmailRecord, error) {
	drafts, err := p.readFolder(ctx, filepath.Join(p.root, ".Drafts"), 0)
	if os.IsNotExist(err) {
		return nil, nil
	}
	return drafts, err
}

func (p *MaildirProvider) Counters(_ context.Context) (models.ProviderCounters, error) {
	return models.ProviderCounters{
		SpamCount:  p.countFirst(".Junk", ".Spam"),
		TrashCount: p.countFirst(".Trash", ".Deleted Items"),
	}, nil
}

func (p *MaildirProvider) countFirst(folders ...string) int {
	for _, f := range folders {
		files, err := maildirFiles(filepath.Join(p.root, f))
		if err == nil {
			return len(files)
		}
	}
	return 0
}

type maildirFile struct {
	path    string
	modTime time.Time
	seen    bool
}

// maildirFiles lists messages in dir/new and dir/cur, newest first.
func maildirFiles(dir string) ([]maildirFile, error) {
	if _, err := os.Stat(filepath.Join(dir, "cur")); err != nil {
		return nil, err
	}

	var files []maildirFile
	for _, sub := range []string{"new", "cur"} {
		entries, err := os.ReadDir(filepath.Join(dir, sub))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			files = append(files, maildirFile{
				path:    filepath.Join(dir, sub, e.Name()),
				modTime: info.ModTime(),
				seen:    sub == "cur" && maildirSeen(e.Name()),
			})
		}
	}
	sort.SliceStable(files, func(i, j int) bool { return files[i].modTime.After(files[j].modTime) })
	return files, nil
}

// maildirSeen reports whether the info suffix (":2,FLAGS") carries S.
func maildirSeen(name string) bool {
	i := strings.LastIndex(name, ":2,")
	return i >= 0 && strings.Contains(name[i+3:], "S")
}

func (p *MaildirProvider) readFolder(ctx context.Context, dir string, limit int) ([]models.EmailRecord, error) {
	files, err := maildirFiles(dir)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}

	records := make([]models.EmailRecord, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		raw, err := os.ReadFile(f.path)
		if err != nil {
			slog.Warn("maildir read failed", "path", f.path, "error", err)
			continue
		}
		id := strings.SplitN(filepath.Base(f.path), ":", 2)[0]
		rec, err := ParseRFC822(id, raw)
		if err != nil {
			slog.Warn("maildir parse failed", "path", f.path, "error", err)
			continue
		}
		rec.IsRead = f.seen
		if rec.Date == "" {
			rec.Date = f.modTime.UTC().Format(time.RFC1123Z)
		}
		records = append(records, rec)
	}
	return records, nil
}
