package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/tvstreamcz/tvstreamd/internal/catalogue"
	"github.com/tvstreamcz/tvstreamd/internal/config"
	"github.com/tvstreamcz/tvstreamd/internal/mediafile"
	"github.com/tvstreamcz/tvstreamd/internal/store"
	"github.com/tvstreamcz/tvstreamd/internal/trakt"
)

// Route dispatches one request to the owning service and shapes the
// result. It holds no state and performs no I/O of its own, so every
// transport shares identical semantics.
func Route(ctx context.Context, deps Deps, req Request) (*Response, error) {
	switch req.Command {
	case CmdSearch:
		page, err := deps.Catalogue.Search(ctx, listingQuery(deps, req))
		if err != nil {
			return nil, err
		}
		return &Response{Page: page}, nil

	case CmdBrowse:
		page, err := deps.Catalogue.Browse(ctx, listingQuery(deps, req))
		if err != nil {
			return nil, err
		}
		return &Response{Page: page}, nil

	case CmdLetters:
		return &Response{Letters: catalogue.Letters()}, nil

	case CmdBrowseLetter:
		page, err := deps.Catalogue.BrowseLetter(ctx, req.Letter, listingQuery(deps, req))
		if err != nil {
			return nil, err
		}
		return &Response{Page: page}, nil

	case CmdBrowseGenre:
		page, err := deps.Catalogue.BrowseGenre(ctx, req.Genre, listingQuery(deps, req))
		if err != nil {
			return nil, err
		}
		return &Response{Page: page}, nil

	case CmdGenres:
		genres, err := deps.Catalogue.Genres(ctx, parseScope(req.Scope))
		if err != nil {
			return nil, err
		}
		return &Response{Genres: genres}, nil

	case CmdDiscover:
		records, err := deps.Catalogue.Discover(ctx, parseScope(req.Scope), req.Category, req.Page)
		if err != nil {
			return nil, err
		}
		return &Response{Records: records}, nil

	case CmdDiscoverGenre:
		id := req.GenreID
		if id == 0 {
			resolved, err := deps.Catalogue.ResolveGenre(ctx, parseScope(req.Scope), req.Genre)
			if err != nil {
				return nil, err
			}
			id = resolved
		}
		records, err := deps.Catalogue.DiscoverByGenre(ctx, parseScope(req.Scope), id, req.Page)
		if err != nil {
			return nil, err
		}
		return &Response{Records: records}, nil

	case CmdSeriesSearch:
		matches, err := deps.Catalogue.SearchSeries(ctx, req.Query)
		if err != nil {
			return nil, err
		}
		return &Response{Series: matches}, nil

	case CmdSeasons:
		info, err := deps.Catalogue.Seasons(ctx, req.Series)
		if err != nil {
			return nil, err
		}
		return &Response{Seasons: info}, nil

	case CmdEpisodes:
		episodes, err := deps.Catalogue.Episodes(ctx, req.Series, req.SeriesID, req.Season)
		if err != nil {
			return nil, err
		}
		return &Response{Episodes: episodes}, nil

	case CmdEpisodeStreams:
		items, err := deps.Catalogue.EpisodeStreams(ctx, req.Series, req.Season, req.Episode)
		if err != nil {
			return nil, err
		}
		return &Response{Items: items}, nil

	case CmdEpisodePlay:
		items, err := deps.Catalogue.EpisodeStreams(ctx, req.Series, req.Season, req.Episode)
		if err != nil {
			return nil, err
		}
		best := items[0]
		link, err := deps.Catalogue.Resolve(ctx, best.Ident, req.Password)
		if err != nil {
			return nil, err
		}
		return &Response{Item: &best, Link: link}, nil

	case CmdStreams:
		items, err := deps.Catalogue.Streams(ctx, listingQuery(deps, req))
		if err != nil {
			return nil, err
		}
		return &Response{Items: items}, nil

	case CmdPlay:
		item, err := deps.Catalogue.AutoPick(ctx, listingQuery(deps, req))
		if err != nil {
			return nil, err
		}
		link, err := deps.Catalogue.Resolve(ctx, item.Ident, req.Password)
		if err != nil {
			return nil, err
		}
		return &Response{Item: item, Link: link}, nil

	case CmdStreamResolve:
		link, err := deps.Catalogue.Resolve(ctx, req.Ident, req.Password)
		if err != nil {
			return nil, err
		}
		return &Response{Link: link}, nil

	case CmdFileInfo:
		item, err := deps.Catalogue.FileDetail(ctx, req.Ident)
		if err != nil {
			return nil, err
		}
		return &Response{Item: item}, nil

	case CmdHistoryList:
		entries, err := deps.History.RecentSearches(ctx, req.Limit)
		if err != nil {
			return nil, err
		}
		return &Response{History: entries}, nil

	case CmdHistoryDelete:
		if err := deps.History.DeleteSearch(ctx, req.ID); err != nil {
			return nil, err
		}
		return &Response{}, nil

	case CmdHistoryClear:
		if err := deps.History.ClearSearchHistory(ctx); err != nil {
			return nil, err
		}
		return &Response{}, nil

	case CmdWatchedList:
		entries, err := deps.Watched.ListWatched(ctx, req.Limit)
		if err != nil {
			return nil, err
		}
		return &Response{Watched: entries}, nil

	case CmdWatchedGet:
		entry, err := deps.Watched.GetWatched(ctx, req.Ident)
		if err != nil {
			return nil, err
		}
		return &Response{Entry: entry}, nil

	case CmdWatchedMark:
		if req.Ident == "" {
			return nil, catalogue.ErrMissingIdent
		}
		entry := store.WatchedEntry{
			Ident:        req.Ident,
			Title:        req.Title,
			Season:       req.Season,
			Episode:      req.Episode,
			PositionSecs: req.Position,
			DurationSecs: req.Duration,
			Watched:      req.Watched,
		}
		if err := deps.Watched.UpsertWatched(ctx, entry); err != nil {
			return nil, err
		}
		if req.Watched && deps.Scrobbler != nil && deps.Scrobbler.Connected() {
			// Trakt failures never block local bookkeeping.
			_ = deps.Scrobbler.MarkWatched(ctx, scrobbleMedia(req))
		}
		return &Response{}, nil

	case CmdWatchedDelete:
		if req.Ident == "" {
			return nil, catalogue.ErrMissingIdent
		}
		if err := deps.Watched.DeleteWatched(ctx, req.Ident); err != nil {
			return nil, err
		}
		return &Response{}, nil

	case CmdScrobbleStart, CmdScrobbleStop:
		if deps.Scrobbler == nil || !deps.Scrobbler.Connected() {
			return nil, ErrScrobblingDisabled
		}
		media := scrobbleMedia(req)
		progress := playbackProgress(req.Position, req.Duration)
		var err error
		if req.Command == CmdScrobbleStart {
			err = deps.Scrobbler.ScrobbleStart(ctx, media, progress)
		} else {
			err = deps.Scrobbler.ScrobbleStop(ctx, media, progress)
		}
		if err != nil {
			return nil, err
		}
		return &Response{}, nil

	case CmdStatus:
		return &Response{Status: deps.status(ctx)}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, req.Command)
	}
}

// listingQuery assembles a catalogue query from a request, merging the
// configured filter defaults in.
func listingQuery(deps Deps, req Request) catalogue.Query {
	return catalogue.Query{
		Text:    req.Query,
		Scope:   parseScope(req.Scope),
		Sort:    req.Sort,
		Filters: resolveFilters(deps.Filters, req),
		Limit:   req.Limit,
		Offset:  req.Offset,
	}
}

// resolveFilters merges request filters over the configured defaults. An
// empty field keeps the default, the literal "any" switches it off.
func resolveFilters(defaults config.FilterConfig, req Request) catalogue.Filters {
	var f catalogue.Filters

	quality := req.Quality
	if quality == "" {
		quality = defaults.MinQuality
	}
	f.MinQuality = parseQuality(quality)

	audio := req.Audio
	if len(audio) == 0 {
		audio = defaults.Audio
	}
	f.Audio = normalizeLangs(audio)

	if req.Subtitles != nil {
		f.SubtitlesRequired = *req.Subtitles
	} else {
		f.SubtitlesRequired = defaults.SubtitlesRequired
	}
	return f
}

// parseQuality maps a requested minimum tier; anything unrecognized,
// including "any", means no minimum.
func parseQuality(s string) mediafile.Quality {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cam":
		return mediafile.QualityCAM
	case "sd":
		return mediafile.QualitySD
	case "hd":
		return mediafile.QualityHD
	case "uhd", "4k":
		return mediafile.QualityUHD
	default:
		return mediafile.QualityUnknown
	}
}

func parseScope(s string) mediafile.MediaType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "movie", "movies":
		return mediafile.TypeMovie
	case "tvshow", "series", "tv":
		return mediafile.TypeSeries
	default:
		return ""
	}
}

// normalizeLangs lowercases language codes; an "any" entry disables the
// audio filter entirely.
func normalizeLangs(langs []string) []string {
	var out []string
	for _, lang := range langs {
		lang = strings.ToLower(strings.TrimSpace(lang))
		if lang == "" || lang == "any" {
			return nil
		}
		out = append(out, lang)
	}
	return out
}

func scrobbleMedia(req Request) trakt.Media {
	return trakt.Media{
		Title:   req.Title,
		Year:    req.Year,
		TmdbID:  req.TmdbID,
		Season:  req.Season,
		Episode: req.Episode,
	}
}

func playbackProgress(position, duration int) float64 {
	if duration <= 0 {
		return 0
	}
	progress := float64(position) / float64(duration) * 100
	if progress > 100 {
		progress = 100
	}
	return progress
}

func (d Deps) status(ctx context.Context) *Status {
	st := &Status{}
	if d.Sessions != nil {
		st.Configured = d.Sessions.IsConfigured()
		if current := d.Sessions.Current(); current != nil {
			st.LoggedIn = true
			st.Username = current.Username
			st.LoginAt = current.LoginAt
			// VIP state is cosmetic; a failed profile fetch hides it.
			if data, err := d.Sessions.AccountInfo(ctx); err == nil {
				st.VIP = data.VIP
				st.VIPDays = data.VIPDays
			}
		}
	}
	if d.Metadata != nil {
		st.Providers = d.Metadata.ProviderNames()
	}
	st.TraktConnected = d.Scrobbler != nil && d.Scrobbler.Connected()
	return st
}
