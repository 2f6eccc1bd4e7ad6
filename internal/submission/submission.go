// Package submission fetches a checker author's repository so the sweep can
// run against a pinned working copy, and stamps reports with the commit that
// was validated.
package submission

import (
	"context"
	"fmt"
	"os"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Info identifies a submission working copy.
type Info struct {
	// URL is the remote the copy came from. Empty for local working copies.
	URL string
	// Ref is the short reference name that was checked out.
	Ref string
	// Commit is the full HEAD hash.
	Commit string
	// Dir is the working copy root.
	Dir string
	// Temporary marks a directory the caller should remove after the run.
	Temporary bool
}

// CloneOptions configures a submission fetch.
type CloneOptions struct {
	// URL is the repository to clone. Local paths work too.
	URL string
	// Ref selects a branch; empty means the remote default.
	Ref string
	// Depth limits history when positive. The sweep never needs more than
	// the checked-out tree, so callers may shallow-clone large remotes.
	Depth int
	// Dest is the clone target. Empty means a fresh temp directory, which
	// is marked Temporary on the returned Info.
	Dest string
}

// Clone fetches the submission repository and reports its HEAD.
func Clone(ctx context.Context, opts CloneOptions) (*Info, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("submission URL is empty")
	}

	dest := opts.Dest
	temporary := false
	if dest == "" {
		dir, err := os.MkdirTemp("", "bimcheck-submission-")
		if err != nil {
			return nil, fmt.Errorf("create submission directory: %w", err)
		}
		dest = dir
		temporary = true
	}

	cloneOpts := &git.CloneOptions{
		URL: opts.URL,
	}
	if opts.Depth > 0 {
		cloneOpts.Depth = opts.Depth
	}
	if opts.Ref != "" {
		cloneOpts.ReferenceName = plumbing.NewBranchReferenceName(opts.Ref)
		cloneOpts.SingleBranch = true
	}

	repo, err := git.PlainCloneContext(ctx, dest, false, cloneOpts)
	if err != nil {
		if temporary {
			_ = os.RemoveAll(dest)
		}
		return nil, fmt.Errorf("clone %s: %w", opts.URL, err)
	}

	head, err := repo.Head()
	if err != nil {
		if temporary {
			_ = os.RemoveAll(dest)
		}
		return nil, fmt.Errorf("read HEAD of %s: %w", opts.URL, err)
	}

	return &Info{
		URL:       opts.URL,
		Ref:       head.Name().Short(),
		Commit:    head.Hash().String(),
		Dir:       dest,
		Temporary: temporary,
	}, nil
}

// Describe reports the HEAD of the repository containing dir, walking up
// from dir the way git itself does. It is best effort: callers stamping a
// local run typically ignore the error when dir is not inside a repository.
func Describe(dir string) (*Info, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dir, err)
	}
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("read HEAD of %s: %w", dir, err)
	}
	return &Info{
		Ref:    head.Name().Short(),
		Commit: head.Hash().String(),
		Dir:    dir,
	}, nil
}

// Cleanup removes a temporary working copy. It leaves caller-provided
// destinations alone.
func (i *Info) Cleanup() {
	if i != nil && i.Temporary && i.Dir != "" {
		_ = os.RemoveAll(i.Dir)
	}
}
