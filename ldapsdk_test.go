package main

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/ofiterev/ldapsdk-inmem/pkg/config"
)

func sampleConfig() *config.Config {
	return &config.Config{
		BaseDN: "dc=glauth,dc=com",
		Rules: []config.Rule{
			{Attribute: "employeeNumber", Matching: "integerMatch"},
		},
		// deliberately out of order: children listed before their parents
		Entries: []config.Entry{
			{DN: "cn=hackers,ou=superheros,dc=glauth,dc=com", Attributes: map[string][]string{
				"cn":             {"hackers"},
				"userPassword":   {"mysecret"},
				"employeeNumber": {"12345"},
			}},
			{DN: "ou=superheros,dc=glauth,dc=com", Attributes: map[string][]string{
				"ou": {"superheros"},
			}},
			{DN: "dc=glauth,dc=com", Attributes: map[string][]string{
				"dc": {"glauth"},
			}},
		},
	}
}

func TestIntegerStuff(t *testing.T) {

	Convey("Building a store from a sample config", t, func() {
		st, err := buildStore(sampleConfig())

		Convey("Should succeed", func() {
			So(err, ShouldBeNil)
			So(st, ShouldNotBeNil)
		})

		Convey("Should seed parents before children", func() {
			_, ok := st.Get("cn=hackers,ou=superheros,dc=glauth,dc=com")
			So(ok, ShouldBeTrue)
			_, ok = st.Get("ou=superheros,dc=glauth,dc=com")
			So(ok, ShouldBeTrue)
		})

		Convey("Should apply the configured matching rule override", func() {
			rule, ok := st.Schema()["employeenumber"]
			So(ok, ShouldBeTrue)
			So(rule.Name(), ShouldEqual, "integerMatch")
		})

		Convey("When reseeding with an extended config", func() {
			cfg := sampleConfig()
			cfg.Entries[0].Attributes["userPassword"] = []string{"changed"}
			cfg.Entries = append(cfg.Entries, config.Entry{
				DN: "cn=newuser,ou=superheros,dc=glauth,dc=com",
				Attributes: map[string][]string{
					"cn":           {"newuser"},
					"userPassword": {"newsecret"},
				},
			})

			So(seedStore(st, cfg), ShouldBeNil)

			Convey("New entries should be added", func() {
				_, ok := st.Get("cn=newuser,ou=superheros,dc=glauth,dc=com")
				So(ok, ShouldBeTrue)
			})

			Convey("Existing entries should be left alone", func() {
				e, ok := st.Get("cn=hackers,ou=superheros,dc=glauth,dc=com")
				So(ok, ShouldBeTrue)
				So(string(e.Values("userPassword")[0]), ShouldEqual, "mysecret")
			})
		})
	})

	Convey("Building a store with an unknown matching rule", t, func() {
		cfg := sampleConfig()
		cfg.Rules = append(cfg.Rules, config.Rule{Attribute: "foo", Matching: "noSuchMatch"})
		_, err := buildStore(cfg)

		Convey("Should report a configuration error", func() {
			So(err, ShouldNotBeNil)
		})
	})
}
