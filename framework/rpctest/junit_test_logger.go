package rpctest

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/grauwen/utlx-conformance-harness/framework"
	"github.com/grauwen/utlx-conformance-harness/framework/helpers"
	o "github.com/grauwen/utlx-conformance-harness/framework/opt"
)

// JUnitTestLogger writes a JUnit XML report when the run ends. Each category becomes a
// <testsuite> and each test file a <testcase>.
type JUnitTestLogger struct {
	filePath   string
	suiteName  string
	properties []junitProperty
	order      []string
	records    map[string]*junitRecord
	lock       sync.Mutex
}

type junitRecord struct {
	id       TestID
	errs     []error
	skipped  o.Maybe[string]
	leaf     bool
	output   string
	duration time.Duration
}

// The element layout follows what go-junit-report produces, which CI servers accept.
type (
	junitReport struct {
		XMLName xml.Name     `xml:"testsuites"`
		Suites  []junitSuite `xml:"testsuite"`
	}
	junitSuite struct {
		Tests      int             `xml:"tests,attr"`
		Failures   int             `xml:"failures,attr"`
		Skipped    int             `xml:"skipped,attr"`
		Time       string          `xml:"time,attr"`
		Name       string          `xml:"name,attr"`
		Properties []junitProperty `xml:"properties>property,omitempty"`
		Cases      []junitCase     `xml:"testcase"`
	}
	junitCase struct {
		Classname string        `xml:"classname,attr"`
		Name      string        `xml:"name,attr"`
		Time      string        `xml:"time,attr"`
		Skipped   *junitSkipped `xml:"skipped,omitempty"`
		Failure   *junitFailure `xml:"failure,omitempty"`
	}
	junitSkipped struct {
		Message string `xml:"message,attr"`
	}
	junitFailure struct {
		Message  string `xml:"message,attr"`
		Type     string `xml:"type,attr"`
		Contents string `xml:",chardata"`
	}
	junitProperty struct {
		Name  string `xml:"name,attr"`
		Value string `xml:"value,attr"`
	}
)

// NewJUnitTestLogger creates a JUnitTestLogger that will write to filePath. The run properties
// and the active filters are listed in every suite.
func NewJUnitTestLogger(
	filePath string,
	suiteName string,
	properties map[string]string,
	filters RegexFilters,
) *JUnitTestLogger {
	j := &JUnitTestLogger{
		filePath:  filePath,
		suiteName: suiteName,
		records:   make(map[string]*junitRecord),
	}
	for _, name := range helpers.SortedKeys(properties) {
		j.properties = append(j.properties, junitProperty{name, properties[name]})
	}
	j.properties = append(j.properties,
		junitProperty{"tests.filter.mustMatch", filters.MustMatch.String()},
		junitProperty{"tests.filter.mustNotMatch", filters.MustNotMatch.String()},
	)
	return j
}

func (j *JUnitTestLogger) update(id TestID, fn func(*junitRecord)) {
	j.lock.Lock()
	defer j.lock.Unlock()
	key := id.String()
	rec := j.records[key]
	if rec == nil {
		rec = &junitRecord{id: id}
		j.records[key] = rec
		j.order = append(j.order, key)
	}
	fn(rec)
}

func (j *JUnitTestLogger) TestStarted(id TestID) {
	j.update(id, func(*junitRecord) {})
}

func (j *JUnitTestLogger) TestError(id TestID, err error) {
	j.update(id, func(r *junitRecord) { r.errs = append(r.errs, err) })
}

func (j *JUnitTestLogger) TestFinished(id TestID, result TestResult, debugOutput framework.CapturedOutput) {
	j.update(id, func(r *junitRecord) {
		r.output = debugOutput.ToString("")
		r.duration = result.Duration
		r.leaf = result.Leaf
	})
}

func (j *JUnitTestLogger) TestSkipped(id TestID, reason string) {
	j.update(id, func(r *junitRecord) {
		r.skipped = o.Some(reason)
		r.leaf = true
	})
}

func (j *JUnitTestLogger) EndLog(Results) error {
	fmt.Printf("Writing JUnit data to %s\n", j.filePath)

	j.lock.Lock()
	report := j.buildReport()
	j.lock.Unlock()

	out, err := xml.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(j.filePath, append(out, '\n'), 0644) //nolint:gosec
}

func (j *JUnitTestLogger) buildReport() junitReport {
	var report junitReport
	suiteIndex := make(map[string]int)
	totals := make(map[string]time.Duration)

	for _, key := range j.order {
		rec := j.records[key]
		if len(rec.id) == 0 || !rec.leaf {
			continue
		}
		category := rec.id[0]
		i, ok := suiteIndex[category]
		if !ok {
			i = len(report.Suites)
			suiteIndex[category] = i
			report.Suites = append(report.Suites, junitSuite{
				Name:       j.suiteName + ": " + category,
				Properties: j.properties,
			})
		}
		suite := &report.Suites[i]
		suite.Tests++
		totals[category] += rec.duration

		tc := junitCase{Classname: category, Name: key, Time: junitSeconds(rec.duration)}
		if reason, skipped := rec.skipped.Get(); skipped {
			suite.Skipped++
			tc.Skipped = &junitSkipped{Message: reason}
		}
		if len(rec.errs) > 0 {
			suite.Failures++
			messages := make([]string, len(rec.errs))
			for n, e := range rec.errs {
				messages[n] = e.Error()
			}
			tc.Failure = &junitFailure{Message: strings.Join(messages, "\n"), Contents: rec.output}
		}
		suite.Cases = append(suite.Cases, tc)
	}
	for i := range report.Suites {
		category := report.Suites[i].Cases[0].Classname
		report.Suites[i].Time = junitSeconds(totals[category])
	}
	return report
}

func junitSeconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}
