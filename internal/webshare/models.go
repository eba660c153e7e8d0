package webshare

import "strconv"

// SearchRequest describes one page of a search query.
type SearchRequest struct {
	What     string
	Category string // defaults to "video"
	Sort     string // "", "recent", "rating", "largest", "smallest"
	Limit    int    // defaults to 25, capped at 100
	Offset   int
}

// File is a single shared file as returned by search or file info.
type File struct {
	Ident         string
	Name          string
	Type          string
	Size          int64
	Img           string
	Stripe        string
	StripeCount   int
	PositiveVotes int
	NegativeVotes int
	Protected     bool
	Queued        bool
}

// SearchPage is one page of search results together with the server-side
// total across all pages.
type SearchPage struct {
	Total int
	Files []File
}

// UserData describes the logged-in account.
type UserData struct {
	Username string
	Email    string
	VIP      bool
	VIPDays  int
	VIPUntil string
	Points   string
}

// Wire types for the XML responses. Numeric fields arrive as text and are
// converted by the normalizers below so a missing or empty element does not
// fail the whole decode.

type statusEnvelope struct {
	Status  string `xml:"status"`
	Code    string `xml:"code"`
	Message string `xml:"message"`
}

type saltResponse struct {
	Salt string `xml:"salt"`
}

type loginResponse struct {
	Token string `xml:"token"`
}

type searchResponse struct {
	Total string     `xml:"total"`
	Files []fileNode `xml:"file"`
}

type fileNode struct {
	Ident         string `xml:"ident"`
	Name          string `xml:"name"`
	Type          string `xml:"type"`
	Size          string `xml:"size"`
	Img           string `xml:"img"`
	Stripe        string `xml:"stripe"`
	StripeCount   string `xml:"stripe_count"`
	PositiveVotes string `xml:"positive_votes"`
	NegativeVotes string `xml:"negative_votes"`
	Password      string `xml:"password"`
	Queued        string `xml:"queued"`
}

type fileLinkResponse struct {
	Link string `xml:"link"`
}

type userDataResponse struct {
	Username string `xml:"username"`
	Email    string `xml:"email"`
	VIP      string `xml:"vip"`
	VIPDays  string `xml:"vip_days"`
	VIPUntil string `xml:"vip_until"`
	Points   string `xml:"points"`
}

func (n fileNode) toFile() File {
	return File{
		Ident:         n.Ident,
		Name:          n.Name,
		Type:          n.Type,
		Size:          parseInt64(n.Size),
		Img:           n.Img,
		Stripe:        n.Stripe,
		StripeCount:   parseInt(n.StripeCount),
		PositiveVotes: parseInt(n.PositiveVotes),
		NegativeVotes: parseInt(n.NegativeVotes),
		Protected:     parseFlag(n.Password),
		Queued:        parseFlag(n.Queued),
	}
}

func (u userDataResponse) toUserData() UserData {
	return UserData{
		Username: u.Username,
		Email:    u.Email,
		VIP:      parseFlag(u.VIP),
		VIPDays:  parseInt(u.VIPDays),
		VIPUntil: u.VIPUntil,
		Points:   u.Points,
	}
}

func parseInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func parseInt64(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func parseFlag(s string) bool {
	return s == "1"
}
