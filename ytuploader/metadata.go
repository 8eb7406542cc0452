package ytuploader

import (
	"fmt"
	"path/filepath"
	"strings"

	"google.golang.org/api/youtube/v3"
)

// Upload defaults.
const (
	// People & Blogs.
	DefaultCategoryID    = "22"
	DefaultPrivacyStatus = "private"
	DefaultChunkSize     = 1 << 20
)

// categories maps YouTube video category IDs to their names.
var categories = map[string]string{
	"1":  "Film & Animation",
	"2":  "Autos & Vehicles",
	"10": "Music",
	"15": "Pets & Animals",
	"17": "Sports",
	"18": "Short Movies",
	"19": "Travel & Events",
	"20": "Gaming",
	"21": "Videoblogging",
	"22": "People & Blogs",
	"23": "Comedy",
	"24": "Entertainment",
	"25": "News & Politics",
	"26": "Howto & Style",
	"27": "Education",
	"28": "Science & Technology",
	"29": "Nonprofits & Activism",
	"30": "Movies",
	"31": "Anime/Animation",
	"32": "Action/Adventure",
	"33": "Classics",
	"35": "Documentary",
	"36": "Drama",
	"37": "Family",
	"38": "Foreign",
	"39": "Horror",
	"40": "Sci-Fi/Fantasy",
	"41": "Thriller",
	"42": "Shorts",
	"43": "Shows",
	"44": "Trailers",
}

// SanitiseCategory accepts a category ID or name and returns the ID, or ""
// if it is neither.
func SanitiseCategory(cat string) string {
	cat = strings.TrimSpace(cat)
	if _, ok := categories[cat]; ok {
		return cat
	}
	for id, name := range categories {
		if strings.EqualFold(name, cat) {
			return id
		}
	}
	return ""
}

// ValidPrivacy reports whether privacy is a status YouTube accepts.
func ValidPrivacy(privacy string) bool {
	switch privacy {
	case "public", "unlisted", "private":
		return true
	}
	return false
}

// VideoMetadata is everything sent along with the file for one upload.
type VideoMetadata struct {
	Path          string
	Title         string
	Description   string
	CategoryID    string
	PrivacyStatus string
}

// buildVideo validates m and turns it into the insert request body.
func buildVideo(m VideoMetadata) (*youtube.Video, error) {
	cat := SanitiseCategory(m.CategoryID)
	if cat == "" {
		return nil, fmt.Errorf("invalid category ID or name: %s", m.CategoryID)
	}
	if !ValidPrivacy(m.PrivacyStatus) {
		return nil, fmt.Errorf("invalid privacy status: %s", m.PrivacyStatus)
	}
	title := m.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(m.Path), filepath.Ext(m.Path))
	}
	return &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       title,
			Description: m.Description,
			CategoryId:  cat,
		},
		Status: &youtube.VideoStatus{PrivacyStatus: m.PrivacyStatus},
	}, nil
}
