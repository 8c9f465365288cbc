package scraper

// X.com DOM selectors
// These are isolated here because X changes their DOM frequently
// Update these when scraping breaks

const (
	// Search result selectors
	TweetArticle = `article[data-testid="tweet"]`
	TweetLink    = `a[href*="/status/"]`

	// Tweet content selectors
	TweetText   = `[data-testid="tweetText"]`
	TweetAuthor = `[data-testid="User-Name"]`
	VideoPlayer = `[data-testid="videoPlayer"] video`

	// Engagement selectors
	LikeCount     = `[data-testid="like"]`
	RetweetCount  = `[data-testid="retweet"]`
	ViewCountLink = `a[href*="/analytics"]`
)
