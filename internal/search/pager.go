package search

// pager tracks the visible window over a ranked result list.
type pager struct {
	size  int
	total int
	start int
}

func newPager(size, total int) *pager {
	return &pager{size: size, total: total}
}

// window returns the half-open range of result positions on the current
// page.
func (p *pager) window() (int, int) {
	end := p.start + p.size
	if end > p.total {
		end = p.total
	}

	return p.start, end
}

func (p *pager) hasPrev() bool { return p.start-p.size >= 0 }
func (p *pager) hasNext() bool { return p.start+p.size < p.total }

func (p *pager) next() bool {
	if !p.hasNext() {
		return false
	}
	p.start += p.size

	return true
}

func (p *pager) prev() bool {
	if !p.hasPrev() {
		return false
	}
	p.start -= p.size

	return true
}

// jump moves to the 1-based page number and reports whether it exists.
func (p *pager) jump(page int) bool {
	if page < 1 || p.total == 0 || page-1 > (p.total-1)/p.size {
		return false
	}
	p.start = (page - 1) * p.size

	return true
}
