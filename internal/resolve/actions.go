package resolve

import (
	"errors"
	"fmt"
)

const (
	unknownActionMessageConstant              = "unknown resolution action"
	versionNotOfferedTemplateConstant         = "version %q is not among the conflicting versions"
	resolutionAbortedMessageConstant          = "interactive resolution aborted"
	pickWithoutVersionMessageTemplateConstant = "pick action for %s carries no version"
)

// ResolutionActionKind enumerates the closed set of interactive decisions.
type ResolutionActionKind int

// Interactive resolution decisions produced by the presentation layer.
const (
	ResolutionActionUseHighest ResolutionActionKind = iota
	ResolutionActionUseLowest
	ResolutionActionPickVersion
	ResolutionActionAbort
)

// ResolutionAction carries one interactive decision for a conflicted package.
type ResolutionAction struct {
	Kind    ResolutionActionKind
	Version string
}

// ErrResolutionAborted indicates the user declined to resolve a conflict.
var ErrResolutionAborted = errors.New(resolutionAbortedMessageConstant)

// ConflictDecider supplies interactive decisions for conflicted packages.
// Implementations own all prompting and rendering.
type ConflictDecider interface {
	Decide(packageName string, versions []string) (ResolutionAction, error)
}

// ApplyAction resolves a conflict according to the provided action.
func (resolver *Resolver) ApplyAction(packageName string, versions []string, action ResolutionAction) (string, error) {
	switch action.Kind {
	case ResolutionActionUseHighest:
		return resolver.ResolveVersion(versions, StrategyHighest), nil
	case ResolutionActionUseLowest:
		return resolver.ResolveVersion(versions, StrategyLowest), nil
	case ResolutionActionPickVersion:
		if len(action.Version) == 0 {
			return "", fmt.Errorf(pickWithoutVersionMessageTemplateConstant, packageName)
		}
		for _, candidate := range versions {
			if candidate == action.Version {
				return candidate, nil
			}
		}
		return "", fmt.Errorf(versionNotOfferedTemplateConstant, action.Version)
	case ResolutionActionAbort:
		return "", ErrResolutionAborted
	default:
		return "", errors.New(unknownActionMessageConstant)
	}
}
