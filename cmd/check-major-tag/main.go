package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/nickromney-org/release-tagger/internal/config"
	"github.com/nickromney-org/release-tagger/internal/github"
	"github.com/nickromney-org/release-tagger/internal/release"
)

func main() {
	token := flag.String("token", os.Getenv("GITHUB_TOKEN"), "GitHub token")
	repo := flag.String("repo", os.Getenv("GITHUB_REPOSITORY"), "Repository to check (owner/repo)")
	prefix := flag.String("tag-prefix", "v", "Prefix of version tags")
	flag.Parse()

	repoConfig, err := config.ParseRepositoryString(*repo)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid repository %q: %v\n", *repo, err)
		os.Exit(1)
	}

	client := github.NewClient(*token, repoConfig.Owner, repoConfig.Repo)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	latest, err := client.LatestVersion(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error fetching latest release: %v\n", err)
		os.Exit(1)
	}

	releaseRef, err := client.GetRef(ctx, latest.TagName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading tag %s: %v\n", latest.TagName, err)
		os.Exit(1)
	}

	majorTag := *prefix + strconv.FormatUint(latest.Version.Major(), 10)
	majorRef, err := client.GetRef(ctx, majorTag)
	if errors.Is(err, release.ErrRefNotFound) {
		fmt.Printf("⚠️  Major tag %s is missing (latest release: %s)\n", majorTag, latest.TagName)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading tag %s: %v\n", majorTag, err)
		os.Exit(1)
	}

	if majorRef.SHA != releaseRef.SHA {
		fmt.Printf("⚠️  Major tag %s is stale (points at %s, %s is at %s)\n",
			majorTag, shortSHA(majorRef.SHA), latest.TagName, shortSHA(releaseRef.SHA))
		os.Exit(1)
	}

	fmt.Printf("✅ Major tag %s is current (latest: %s)\n", majorTag, latest.TagName)
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
