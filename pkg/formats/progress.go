package formats

import "io"

// Progress is a load progress sample.
type Progress struct {
	Loaded int64
	Total  int64 // -1 when unknown
	// Percent is 0-99 while streaming and 100 once parsing finished.
	Percent int
	// Indeterminate is set when Total is unknown.
	Indeterminate bool
}

// ProgressFunc receives progress samples. A nil func is valid.
type ProgressFunc func(Progress)

func (f ProgressFunc) report(p Progress) {
	if f != nil {
		f(p)
	}
}

// indeterminateStep throttles samples when the total is unknown.
const indeterminateStep = 256 << 10

type progressReader struct {
	r           io.Reader
	total       int64
	loaded      int64
	fn          ProgressFunc
	lastPercent int
	lastLoaded  int64
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.loaded += int64(n)
	if n > 0 || p.lastPercent < 0 {
		p.sample()
	}
	return n, err
}

func (p *progressReader) sample() {
	if p.fn == nil {
		return
	}
	if p.total <= 0 {
		if p.lastPercent < 0 || p.loaded-p.lastLoaded >= indeterminateStep {
			p.lastPercent, p.lastLoaded = 0, p.loaded
			p.fn(Progress{Loaded: p.loaded, Total: -1, Indeterminate: true})
		}
		return
	}
	pct := int(p.loaded * 100 / p.total)
	if pct > 99 {
		pct = 99
	}
	if pct != p.lastPercent {
		p.lastPercent = pct
		p.fn(Progress{Loaded: p.loaded, Total: p.total, Percent: pct})
	}
}
