// Package crawler drives a single paginated crawl from a start URL until a
// termination condition holds.
//
// # Architecture
//
// Controller is a small state machine:
//
//	Initializing -> Fetching -> Extracting -> Deciding -> Fetching ...
//	                   |             |            |
//	                   +-------------+------------+--> Terminated
//
// Initializing validates the start URL, clears the state and loads the robots
// policy. A robots.txt Crawl-delay larger than the configured delay raises the
// rate limiter. Fetching asks the Fetcher for the current page; the fetcher
// owns politeness, rate limiting and retries. Extracting hands the body to the
// Extractor. Deciding appends the records, checks the stop conditions and
// resolves the next page against the URL that was actually served.
//
// # Termination
//
// The crawl ends when:
//   - the record count reaches the target (checked only after a whole page)
//   - the page has no next reference
//   - a page fails to fetch, is refused by robots.txt or cannot be parsed
//   - the next reference points at a page already visited
//   - the optional page cap is reached
//   - the context is cancelled
//
// Records collected before a failure stay in the returned state so they can
// still be exported.
//
// # Usage
//
//	ctrl := crawler.NewController(startURL, f, catalog.NewAdapter(),
//	    crawler.WithTargetRecords(500),
//	    crawler.WithPolicy(checker),
//	    crawler.WithDelayRaiser(limiter),
//	)
//	state, err := ctrl.Run(ctx)
package crawler
