// Package grok compiles named-capture patterns against a fixed library of
// named sub-patterns (%{NAME} and %{NAME:capture}), the way logstash-style
// grok expressions do. The library is frozen: no runtime registration of
// new base patterns is exposed, matching the spec's "treat as frozen"
// directive.
//
// Patterns are compiled down to Go's RE2 engine (regexp), so the fragments
// below are adapted from the canonical grok pattern set with lookaround
// assertions and atomic groups removed — RE2 supports neither. The
// matched language is unchanged for well-formed input; only pathological
// edge cases that depended on backtracking differ.
package grok

import (
	"fmt"
	"regexp"
	"strings"
)

// library holds the frozen named sub-patterns, keyed by name.
var library = map[string]string{
	"USERNAME":     `[a-zA-Z0-9._-]+`,
	"USER":         `%{USERNAME}`,
	"INT":          `(?:[+-]?(?:[0-9]+))`,
	"BASE10NUM":    `(?:[+-]?(?:(?:[0-9]+(?:\.[0-9]+)?)|(?:\.[0-9]+)))`,
	"NUMBER":       `(?:%{BASE10NUM})`,
	"BASE16NUM":    `(?:[+-]?(?:0x)?(?:[0-9A-Fa-f]+))`,
	"BASE16FLOAT":  `(?:[+-]?(?:0x)?(?:(?:[0-9A-Fa-f]+(?:\.[0-9A-Fa-f]*)?)|(?:\.[0-9A-Fa-f]+)))`,
	"POSINT":       `\b(?:[1-9][0-9]*)\b`,
	"NONNEGINT":    `\b(?:[0-9]+)\b`,
	"WORD":         `\b\w+\b`,
	"NOTSPACE":     `\S+`,
	"SPACE":        `\s*`,
	"DATA":         `.*?`,
	"GREEDYDATA":   `.*`,
	"QUOTEDSTRING":  `(?:"(?:\\.|[^\\"])*"|'(?:\\.|[^\\'])*'|` + "`" + `(?:\\.|[^\\` + "`" + `])*` + "`" + `)`,
	"UUID":         `[A-Fa-f0-9]{8}-(?:[A-Fa-f0-9]{4}-){3}[A-Fa-f0-9]{12}`,
	"COMMONMAC":    `(?:(?:[A-Fa-f0-9]{2}:){5}[A-Fa-f0-9]{2})`,
	"WINDOWSMAC":   `(?:(?:[A-Fa-f0-9]{2}-){5}[A-Fa-f0-9]{2})`,
	"CISCOMAC":     `(?:(?:[A-Fa-f0-9]{4}\.){2}[A-Fa-f0-9]{4})`,
	"MAC":          `(?:%{CISCOMAC}|%{WINDOWSMAC}|%{COMMONMAC})`,
	"IPV4":         `(?:(?:25[0-5]|2[0-4][0-9]|[0-1]?[0-9]{1,2})\.(?:25[0-5]|2[0-4][0-9]|[0-1]?[0-9]{1,2})\.(?:25[0-5]|2[0-4][0-9]|[0-1]?[0-9]{1,2})\.(?:25[0-5]|2[0-4][0-9]|[0-1]?[0-9]{1,2}))`,
	"IPV6":         `(?:(?:[0-9A-Fa-f]{1,4}:){7}[0-9A-Fa-f]{1,4}|(?:[0-9A-Fa-f]{1,4}:){1,7}:|::(?:[0-9A-Fa-f]{1,4}:){0,6}[0-9A-Fa-f]{1,4})`,
	"IP":           `(?:%{IPV6}|%{IPV4})`,
	"HOSTNAME":     `\b(?:[0-9A-Za-z][0-9A-Za-z-]{0,62})(?:\.(?:[0-9A-Za-z][0-9A-Za-z-]{0,62}))*\.?`,
	"HOST":         `%{HOSTNAME}`,
	"IPORHOST":     `(?:%{HOSTNAME}|%{IP})`,
	"HOSTPORT":     `%{IPORHOST}:%{POSINT}`,
	"UNIXPATH":     `(?:/(?:[\w_%!$@:.,-]+|\\.)*)+`,
	"WINPATH":      `(?:[A-Za-z]+:|\\)(?:\\[^\\?*]*)+`,
	"PATH":         `(?:%{UNIXPATH}|%{WINPATH})`,
	"TTY":          `(?:/dev/(?:pts|tty(?:[pq])?)(?:\w+)?/?(?:[0-9]+))`,
	"URIPROTO":     `[A-Za-z]+(?:\+[A-Za-z+]+)?`,
	"URIHOST":      `%{IPORHOST}(?::%{POSINT})?`,
	"URIPATH":      `(?:/[A-Za-z0-9$.+!*'(){},~:;=@#%_-]*)+`,
	"URIPARAM":     `\?[A-Za-z0-9$.+!*'|(){},~@#%&/=:;_?-]*`,
	"URIPATHPARAM": `%{URIPATH}(?:%{URIPARAM})?`,
	"URI":          `%{URIPROTO}://(?:%{USER}(?::[^@]*)?@)?(?:%{URIHOST})?(?:%{URIPATHPARAM})?`,
	"MONTH":        `\b(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|Jun(?:e)?|Jul(?:y)?|Aug(?:ust)?|Sep(?:tember)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)\b`,
	"MONTHNUM":     `(?:0?[1-9]|1[0-2])`,
	"MONTHNUM2":    `(?:0[1-9]|1[0-2])`,
	"MONTHDAY":     `(?:(?:0[1-9])|(?:[12][0-9])|(?:3[01])|[1-9])`,
	"DAY":          `(?:Mon(?:day)?|Tue(?:sday)?|Wed(?:nesday)?|Thu(?:rsday)?|Fri(?:day)?|Sat(?:urday)?|Sun(?:day)?)`,
	"YEAR":         `(?:[0-9]{2}){1,2}`,
	"HOUR":         `(?:2[0123]|[01]?[0-9])`,
	"MINUTE":       `(?:[0-5][0-9])`,
	"SECOND":       `(?:(?:[0-5]?[0-9]|60)(?:[:.,][0-9]+)?)`,
	"TIME":         `%{HOUR}:%{MINUTE}(?::%{SECOND})`,
	"DATE_US":      `%{MONTHNUM}[/-]%{MONTHDAY}[/-]%{YEAR}`,
	"DATE_EU":      `%{MONTHDAY}[./-]%{MONTHNUM}[./-]%{YEAR}`,
	"ISO8601_TIMEZONE": `(?:Z|[+-]%{HOUR}(?::?%{MINUTE}))`,
	"ISO8601_SECOND":   `(?:%{SECOND}|60)`,
	"TIMESTAMP_ISO8601": `%{YEAR}-%{MONTHNUM}-%{MONTHDAY}[T ]%{HOUR}:?%{MINUTE}(?::?%{SECOND})?%{ISO8601_TIMEZONE}?`,
	"DATE":         `(?:%{DATE_US}|%{DATE_EU})`,
	"DATESTAMP":    `%{DATE}[- ]%{TIME}`,
	"TZ":           `(?:[PMCE][SD]T|UTC)`,
	"DATESTAMP_RFC822":    `%{DAY} %{MONTH} %{MONTHDAY} %{YEAR} %{TIME} %{TZ}`,
	"DATESTAMP_RFC2822":   `%{DAY}, %{MONTHDAY} %{MONTH} %{YEAR} %{TIME} %{ISO8601_TIMEZONE}`,
	"DATESTAMP_OTHER":     `%{DAY} %{MONTH} %{MONTHDAY} %{TIME} %{TZ} %{YEAR}`,
	"DATESTAMP_EVENTLOG":  `%{YEAR}%{MONTHNUM2}%{MONTHDAY}%{HOUR}%{MINUTE}%{SECOND}`,
	"SYSLOGTIMESTAMP": `%{MONTH} +%{MONTHDAY} %{TIME}`,
	"PROG":         `(?:[\w._/%-]+)`,
	"SYSLOGPROG":   `%{PROG}(?:\[%{POSINT}\])?`,
	"SYSLOGHOST":   `%{IPORHOST}`,
	"SYSLOGFACILITY": `<%{NONNEGINT}\.%{NONNEGINT}>`,
	"SYSLOGBASE":   `%{SYSLOGTIMESTAMP:timestamp} (?:%{SYSLOGFACILITY} )?%{SYSLOGHOST:logsource} %{SYSLOGPROG}:`,
	"HTTPDATE":     `%{MONTHDAY}/%{MONTH}/%{YEAR}:%{TIME} %{INT}`,
	"QS":           `%{QUOTEDSTRING}`,
	"LOGLEVEL":     `(?:[Aa]lert|ALERT|[Tt]race|TRACE|[Dd]ebug|DEBUG|[Nn]otice|NOTICE|[Ii]nfo|INFO|[Ww]arn?(?:ing)?|WARN?(?:ING)?|[Ee]rr?(?:or)?|ERR?(?:OR)?|[Cc]rit?(?:ical)?|CRIT?(?:ICAL)?|[Ff]atal|FATAL|[Ss]evere|SEVERE|EMERG(?:ENCY)?|[Ee]merg(?:ency)?)`,
	"COMMONAPACHELOG": `%{IPORHOST:clientip} %{USER:ident} %{USER:auth} \[%{HTTPDATE:timestamp}\] "(?:%{WORD:verb} %{NOTSPACE:request}(?: HTTP/%{NUMBER:httpversion})?|%{DATA:rawrequest})" %{NUMBER:response} (?:%{NUMBER:bytes}|-)`,
	"COMBINEDAPACHELOG": `%{COMMONAPACHELOG} %{QS:referrer} %{QS:agent}`,
}

var tokenRe = regexp.MustCompile(`%\{(\w+)(?::(\w+))?\}`)

const maxExpandDepth = 32

// Compile expands a %{NAME} / %{NAME:capture} pattern against the frozen
// library and returns a compiled RE2 regexp with named capture groups for
// every `:capture` reference.
func Compile(pattern string) (*regexp.Regexp, error) {
	expanded, err := expand(pattern, 0)
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile(expanded)
	if err != nil {
		return nil, fmt.Errorf("grok: compiling %q: %w", pattern, err)
	}
	return re, nil
}

func expand(pattern string, depth int) (string, error) {
	if depth > maxExpandDepth {
		return "", fmt.Errorf("grok: pattern nesting too deep (possible cycle)")
	}

	var out strings.Builder
	last := 0
	for _, loc := range tokenRe.FindAllStringSubmatchIndex(pattern, -1) {
		out.WriteString(pattern[last:loc[0]])
		name := pattern[loc[2]:loc[3]]
		capture := ""
		if loc[4] >= 0 {
			capture = pattern[loc[4]:loc[5]]
		}

		frag, ok := library[name]
		if !ok {
			return "", fmt.Errorf("grok: unknown pattern %q", name)
		}

		expandedFrag, err := expand(frag, depth+1)
		if err != nil {
			return "", err
		}

		if capture != "" {
			out.WriteString("(?P<" + capture + ">" + expandedFrag + ")")
		} else {
			out.WriteString("(?:" + expandedFrag + ")")
		}
		last = loc[1]
	}
	out.WriteString(pattern[last:])
	return out.String(), nil
}

// Match runs the compiled pattern against input and returns the named
// captures. ok is false if the pattern did not match at all.
func Match(re *regexp.Regexp, input string) (captures map[string]string, ok bool) {
	m := re.FindStringSubmatch(input)
	if m == nil {
		return nil, false
	}
	names := re.SubexpNames()
	captures = make(map[string]string, len(names))
	for i, n := range names {
		if i == 0 || n == "" {
			continue
		}
		captures[n] = m[i]
	}
	return captures, true
}
