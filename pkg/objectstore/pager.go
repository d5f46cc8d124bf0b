package objectstore

import "context"

// pagerState models the paged list API as an explicit state machine, per
// spec.md §9's redesign guidance replacing the original's lazy-sequence
// model: havePage (current page has unread summaries), needPage (current
// page is drained, another is known to exist), exhausted (no more pages).
type pagerState int

const (
	pagerHavePage pagerState = iota
	pagerNeedPage
	pagerExhausted
)

// VersionPager lazily walks the paged list-versions API for one
// bucket/prefix. The next page is requested only when the caller has
// drained every summary of the current one (Next is only ever called when
// the previous page is fully emitted downstream), preserving the
// back-pressure spec.md §4.2 requires.
type VersionPager struct {
	store    Store
	bucket   string
	prefix   string
	pageSize int32

	state   pagerState
	page    *ListPage
	cursor  int
	emitted int
}

// NewVersionPager constructs a pager that has not yet issued any list call.
// pageSize is the page size requested on the first call (ListVersions caps
// it at 1000 regardless); pageSize <= 0 falls back to that same cap.
func NewVersionPager(store Store, bucket, prefix string, pageSize int32) *VersionPager {
	if pageSize <= 0 {
		pageSize = 1000
	}
	return &VersionPager{store: store, bucket: bucket, prefix: prefix, pageSize: pageSize, state: pagerNeedPage}
}

// Next returns the next summary, or ok=false once every page has been
// exhausted. The emission index (store-returned order within a page,
// monotonically increasing across pages) is attached so the Selector can
// apply spec.md §4.4's stable tie-break.
func (p *VersionPager) Next(ctx context.Context) (summary VersionSummary, emissionIndex int, ok bool, err error) {
	for {
		switch p.state {
		case pagerExhausted:
			return VersionSummary{}, 0, false, nil

		case pagerNeedPage:
			var page *ListPage
			if p.page == nil {
				page, err = p.store.ListVersions(ctx, p.bucket, p.prefix, p.pageSize)
			} else {
				page, err = p.store.ListNextBatch(ctx, p.bucket, p.prefix, p.page)
			}
			if err != nil {
				return VersionSummary{}, 0, false, err
			}
			p.page = page
			p.cursor = 0
			if len(page.Summaries) == 0 {
				if page.Truncated {
					continue // an empty-but-truncated page is legal; fetch the next one
				}
				p.state = pagerExhausted
				continue
			}
			p.state = pagerHavePage
			continue

		case pagerHavePage:
			s := p.page.Summaries[p.cursor]
			idx := p.emitted
			p.cursor++
			p.emitted++
			if p.cursor >= len(p.page.Summaries) {
				if p.page.Truncated {
					p.state = pagerNeedPage
				} else {
					p.state = pagerExhausted
				}
			}
			return s, idx, true, nil
		}
	}
}
