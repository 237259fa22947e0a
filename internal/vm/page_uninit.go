package vm

import "github.com/pkg/errors"

// uninitPage is the lazy, not-yet-materialized state every page starts
// in. Its SwapIn is the one-shot upgrade of §4.C: it reads the Init
// payload, transitions the page to Anon or File, initializes the new
// variant's state from the aux, and only then hands off to that
// variant's own SwapIn. Every fault after this one goes straight to the
// new variant — uninitPage.SwapIn never runs twice for the same page.
type uninitPage struct {
	page   *Page
	closed bool
}

func (u *uninitPage) SwapIn(kva []byte) error {
	p := u.page
	payload := p.payload

	switch payload.kind {
	case KindAnon:
		p.Kind = KindAnon
		p.ops = &anonPage{page: p}
	case KindFile:
		aux, ok := payload.aux.(*FileAux)
		if !ok || aux == nil {
			return errors.New("vm: uninit page: file variant missing FileAux")
		}
		p.Kind = KindFile
		p.ops = &filePage{page: p, aux: aux}
	default:
		return errors.Errorf("vm: uninit page: unsupported target kind %v", payload.kind)
	}

	if payload.init != nil {
		if err := payload.init(p, payload.aux); err != nil {
			return errors.Wrap(err, "uninit page: initializer")
		}
	}

	return p.ops.SwapIn(kva)
}

// SwapOut is unreachable in correct use: an Uninit page has never been
// claimed, so it owns no frame to evict. It exists only so uninitPage
// satisfies PageOps before the one-shot transition happens.
func (u *uninitPage) SwapOut() error { return errors.New("vm: swap_out called on an uninit page") }

// Destroy closes a never-touched file-backed page's already-duplicated
// file handle (Mmap duplicates one handle per page up front, before any
// page is faulted in, so an untouched tail page still owns one). Anon
// pages own nothing yet and Destroy is a no-op for them. The handle is
// closed at most once, however often Destroy is called.
func (u *uninitPage) Destroy() error {
	if aux, ok := u.page.payload.aux.(*FileAux); ok && aux != nil && !u.closed {
		u.closed = true
		return u.page.owner.sys.withFS(aux.File.Close)
	}
	return nil
}
