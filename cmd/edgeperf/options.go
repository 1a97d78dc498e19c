package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// scanArgs reports and removes option tokens the target command does not
// define, so that parsing never stops on them. Known options pass through
// unchanged together with their values. --append is echoed as it is seen.
func scanArgs(root *cobra.Command, args []string, w io.Writer) []string {
	target := root
	if found, _, err := root.Find(args); err == nil && found != nil {
		target = found
	}

	target.InitDefaultHelpFlag()

	sets := []*pflag.FlagSet{target.Flags(), target.PersistentFlags(), target.InheritedFlags()}

	lookup := func(name string) *pflag.Flag {
		for _, fs := range sets {
			if f := fs.Lookup(name); f != nil {
				return f
			}
		}

		return nil
	}

	lookupShort := func(c string) *pflag.Flag {
		for _, fs := range sets {
			if f := fs.ShorthandLookup(c); f != nil {
				return f
			}
		}

		return nil
	}

	out := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		tok := args[i]

		switch {
		case tok == "--":
			return append(out, args[i:]...)

		case strings.HasPrefix(tok, "---"):
			_, _ = fmt.Fprintf(w, "Got unknown parse returns: %s\n", tok)

		case strings.HasPrefix(tok, "--"):
			name, value, hasValue := strings.Cut(tok[2:], "=")

			f := lookup(name)
			needsNext := f != nil && !hasValue && f.NoOptDefVal == ""

			// A value option at the end of args has no argument.
			if f == nil || (needsNext && i+1 == len(args)) {
				_, _ = fmt.Fprintln(w, "Got unknown option.")
				continue
			}

			out = append(out, tok)

			if needsNext {
				i++
				value = args[i]
				out = append(out, value)
			}

			if name == "append" {
				_, _ = fmt.Fprintln(w, "Got long option append.")
				_, _ = fmt.Fprintln(w, value)
			}

		case strings.HasPrefix(tok, "-") && len(tok) > 1:
			kept, takesNext := scanShortCluster(tok[1:], lookupShort, i+1 < len(args), w)
			if kept != "" {
				out = append(out, "-"+kept)
			}

			if takesNext {
				i++
				out = append(out, args[i])
			}

		default:
			out = append(out, tok)
		}
	}

	return out
}

// scanShortCluster filters a cluster like "vgb4" down to its known
// shorthands. A value-taking shorthand consumes the rest of the cluster, or
// the next argument when it ends the cluster. Without a next argument it is
// reported and dropped.
func scanShortCluster(cluster string, lookup func(string) *pflag.Flag, hasNext bool, w io.Writer) (kept string, takesNext bool) {
	var sb strings.Builder

	for j := 0; j < len(cluster); j++ {
		c := cluster[j : j+1]

		f := lookup(c)
		if f == nil {
			_, _ = fmt.Fprintln(w, "Got unknown option.")
			continue
		}

		if f.NoOptDefVal != "" {
			sb.WriteString(c)

			if j+1 < len(cluster) && cluster[j+1] == '=' {
				sb.WriteString(cluster[j+1:])

				return sb.String(), false
			}

			continue
		}

		if j+1 < len(cluster) {
			sb.WriteString(c)
			sb.WriteString(cluster[j+1:])

			return sb.String(), false
		}

		if !hasNext {
			_, _ = fmt.Fprintln(w, "Got unknown option.")

			return sb.String(), false
		}

		sb.WriteString(c)

		return sb.String(), true
	}

	return sb.String(), false
}
