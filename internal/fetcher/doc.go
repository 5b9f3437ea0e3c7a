// Package fetcher retrieves a single page politely and resiliently.
//
// A fetch is one logical operation made of up to RetryPolicy.MaxAttempts
// network attempts:
//
//  1. The robots policy is consulted. A disallowed target fails with
//     ErrPolicyDenied and no request is sent.
//  2. The rate limiter is waited on before every attempt.
//  3. A GET is issued with a per-attempt timeout. Compressed bodies (gzip,
//     deflate, br) are decoded and the decoded size is capped.
//  4. Timeouts, connection failures, 5xx and 429 are transient: the fetcher
//     backs off attempt*BackoffUnit and tries again.
//  5. Other 4xx statuses and unreadable bodies fail at once with
//     ErrClientError.
//
// When every attempt fails transiently the fetch ends with
// ErrRetriesExhausted. Failures are returned as *FetchError, which matches
// the sentinels with errors.Is.
//
// # Usage
//
//	client, err := fetcher.NewHTTPClient(fetcher.TransportOptions{Timeout: 10 * time.Second})
//	f := fetcher.New(userAgent,
//		fetcher.WithHTTPClient(client),
//		fetcher.WithPolicy(checker),
//		fetcher.WithLimiter(limiter),
//	)
//	result, err := f.Fetch(ctx, target)
package fetcher
