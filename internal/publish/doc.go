// Package publish keeps the metadata git repository in step with the
// registry.
//
// The workflow has three steps, run by an operator in order:
//
//  1. Regenerate writes validated production metadata into the working
//     copy: the SAML document, the combined LDAP document, one LDAP
//     document per service and the OIDC document. LDAP files of services
//     that are no longer published are deleted.
//  2. Diff compares the managed files with HEAD and returns unified diffs
//     and a hash identifying exactly this set of changes.
//  3. Commit takes the hash the operator approved. It locks the
//     repository, regenerates, recomputes the diff and refuses with
//     spreg.ErrDiffChanged when the hash moved. Otherwise it commits,
//     pushes, fetches and checks that HEAD matches the remote branch. The
//     lock is held throughout.
//
// Each step takes the repository file lock, so two operators on one
// working copy run one at a time.
//
// Git access goes through Repository. GitRepository implements it with
// go-git.
package publish
