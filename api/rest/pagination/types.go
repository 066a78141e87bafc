package pagination

// Params holds pagination parameters from request
type Params struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

// Meta holds pagination metadata for response
type Meta struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// NewMeta creates pagination metadata from params and total count
func NewMeta(params Params, total int) Meta {
	return Meta{
		Total:   total,
		Limit:   params.Limit,
		Offset:  params.Offset,
		HasMore: params.Offset+params.Limit < total,
	}
}

// Normalize clamps limit into [1, maxLimit], falling back to defaultLimit,
// and floors offset at zero
func (p Params) Normalize(defaultLimit, maxLimit int) Params {
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}

	p.Limit = min(p.Limit, maxLimit)
	p.Offset = max(p.Offset, 0)

	return p
}
